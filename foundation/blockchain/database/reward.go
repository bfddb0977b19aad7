package database

// Issuance schedule in the smallest unit (1 coin = 100_000_000 units).
const (
	InitialReward   uint64 = 50_00000000
	HalvingInterval uint64 = 4_204_800
	MaxHalvings     uint64 = 64
	TotalSupply     uint64 = 21_000_000_00000000
)

// Reward returns the maximum coinbase amount for a block at the specified
// height. The reward halves every HalvingInterval blocks and is zero once
// MaxHalvings halvings have happened.
func Reward(index uint64) uint64 {
	halvings := index / HalvingInterval
	if halvings >= MaxHalvings {
		return 0
	}

	return InitialReward >> halvings
}
