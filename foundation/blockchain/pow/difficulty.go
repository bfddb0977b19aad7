package pow

import (
	"math"
	"time"

	"github.com/auriumchain/node/foundation/blockchain/database"
)

// MinDifficulty is the floor for any difficulty.
const MinDifficulty uint = 1

// AdjustDifficulty compares the time the last interval took with the target
// time for the interval. Less than half the target raises the difficulty by
// one, more than double lowers it by one down to MinDifficulty.
func AdjustDifficulty(current uint, elapsed time.Duration, target time.Duration) uint {
	switch {
	case elapsed < target/2:
		return current + 1
	case elapsed > target*2:
		if current <= MinDifficulty {
			return MinDifficulty
		}
		return current - 1
	}

	return current
}

// NextDifficulty returns the difficulty for the block following the last
// block of the chain. The difficulty is retargeted when the next block
// starts a new interval, measured over the last interval blocks.
func NextDifficulty(chain []database.Block, interval uint64, blockTime time.Duration) uint {
	if len(chain) == 0 {
		return MinDifficulty
	}

	tip := chain[len(chain)-1]
	current := max(tip.Difficulty, MinDifficulty)

	if interval == 0 || len(chain) < 2 || (tip.Index+1)%interval != 0 {
		return current
	}

	// The first interval starts at genesis and is one block short.
	first := chain[max(0, len(chain)-1-int(interval))]
	elapsed := time.Duration(tip.Timestamp-first.Timestamp) * time.Second
	target := time.Duration(tip.Index-first.Index) * blockTime

	return AdjustDifficulty(current, elapsed, target)
}

// EstimateHashrate sums 2^difficulty work units over the last window blocks
// and divides by their timestamp span in seconds. It is for diagnostics only.
func EstimateHashrate(blocks []database.Block, window int) float64 {
	if window > len(blocks) {
		window = len(blocks)
	}
	if window < 2 {
		return 0
	}

	last := blocks[len(blocks)-window:]

	var work float64
	for _, b := range last {
		work += math.Pow(2, float64(b.Difficulty))
	}

	span := last[len(last)-1].Timestamp - last[0].Timestamp
	if span <= 0 {
		return 0
	}

	return work / float64(span)
}
