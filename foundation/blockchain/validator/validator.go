// Package validator implements the rule set a candidate block or a whole
// chain must satisfy before it is accepted into the ledger.
package validator

import (
	"time"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/genesis"
	"github.com/auriumchain/node/foundation/blockchain/pow"
)

// Default limits.
const (
	DefaultMaxBlockSize  = 4_000_000
	DefaultMaxTxPerBlock = 10_000
	DefaultMaxFutureSkew = 2 * time.Hour
)

// Validator applies the block rules. The zero value is not usable, use New.
type Validator struct {
	MaxBlockSize  int
	MaxTxPerBlock int
	MaxFutureSkew time.Duration
	Now           func() time.Time
}

// New constructs a validator with the default limits and the wall clock.
func New() *Validator {
	return &Validator{
		MaxBlockSize:  DefaultMaxBlockSize,
		MaxTxPerBlock: DefaultMaxTxPerBlock,
		MaxFutureSkew: DefaultMaxFutureSkew,
		Now:           time.Now,
	}
}

// Validate checks the candidate against its parent. The rules are applied
// in order and the first failure is returned as a *ValidationError.
func (v *Validator) Validate(candidate database.Block, parent database.Block) error {
	checks := []func(candidate database.Block, parent database.Block) error{
		v.checkTimestamp,
		v.checkSize,
		checkTxShape,
		checkReward,
		checkProofOfWork,
		checkLinkage,
		checkDoubleSpend,
	}

	for _, check := range checks {
		if err := check(candidate, parent); err != nil {
			return err
		}
	}

	return nil
}

// ValidateChain checks a whole chain. The genesis block is compared with
// the pinned hash first, then proof of work, including the transaction
// commitment, and linkage are re-checked for every pair of blocks.
func (v *Validator) ValidateChain(blocks []database.Block) error {
	if len(blocks) == 0 {
		return newError(RuleGenesis, 0, genesis.Hash, "", "chain is empty")
	}

	if !genesis.IsGenesis(blocks[0]) {
		return newError(RuleGenesis, blocks[0].Index, genesis.Hash, blocks[0].Hash, "foreign genesis block")
	}

	for i := 1; i < len(blocks); i++ {
		if err := checkProofOfWork(blocks[i], blocks[i-1]); err != nil {
			return err
		}
		if err := checkLinkage(blocks[i], blocks[i-1]); err != nil {
			return err
		}
	}

	return nil
}

// =============================================================================

func (v *Validator) checkTimestamp(candidate database.Block, parent database.Block) error {
	if candidate.Timestamp < 0 {
		return newError(RuleTimestamp, candidate.Index, ">= 0", candidate.Timestamp, "negative timestamp")
	}

	limit := v.Now().Add(v.MaxFutureSkew).Unix()
	if candidate.Timestamp > limit {
		return newError(RuleTimestamp, candidate.Index, limit, candidate.Timestamp, "timestamp too far in the future")
	}

	if candidate.Timestamp < parent.Timestamp {
		return newError(RuleTimestamp, candidate.Index, parent.Timestamp, candidate.Timestamp, "timestamp before parent")
	}

	return nil
}

func (v *Validator) checkSize(candidate database.Block, _ database.Block) error {
	if size := candidate.Size(); size == 0 || size > v.MaxBlockSize {
		return newError(RuleSize, candidate.Index, v.MaxBlockSize, size, "block size out of bounds")
	}

	if n := len(candidate.Trans); n > v.MaxTxPerBlock {
		return newError(RuleSize, candidate.Index, v.MaxTxPerBlock, n, "too many transactions")
	}

	return nil
}

func checkTxShape(candidate database.Block, _ database.Block) error {
	if len(candidate.Trans) == 0 {
		return newError(RuleTxShape, candidate.Index, "coinbase", "no transactions", "block has no transactions")
	}

	if !candidate.Trans[0].IsCoinbase() {
		return newError(RuleTxShape, candidate.Index, "coinbase", candidate.Trans[0].ID, "first transaction must be coinbase")
	}

	for i, tx := range candidate.Trans[1:] {
		if tx.IsCoinbase() {
			return newError(RuleTxShape, candidate.Index, "regular", tx.ID, "transaction %d is a second coinbase", i+1)
		}
	}

	return nil
}

func checkReward(candidate database.Block, _ database.Block) error {
	reward := database.Reward(candidate.Index)

	var total uint64
	for _, out := range candidate.Trans[0].Outputs {
		if out.Amount > reward || total > reward-out.Amount {
			return newError(RuleReward, candidate.Index, reward, "overflow", "excessive mining reward")
		}
		total += out.Amount
	}

	if total > reward {
		return newError(RuleReward, candidate.Index, reward, total, "excessive mining reward")
	}

	return nil
}

func checkProofOfWork(candidate database.Block, _ database.Block) error {
	if h := candidate.HeaderHash(); h != candidate.Hash {
		return newError(RuleProofOfWork, candidate.Index, h, candidate.Hash, "block hash mismatch")
	}

	// The header hash only binds the transactions through the merkle root.
	for _, tx := range candidate.Trans {
		if err := tx.VerifyID(); err != nil {
			return newError(RuleProofOfWork, candidate.Index, "content id", tx.ID, "%s", err)
		}
	}

	if err := candidate.VerifyMerkleRoot(); err != nil {
		return newError(RuleProofOfWork, candidate.Index, candidate.MerkleRoot, "transactions", "%s", err)
	}

	if candidate.Difficulty < pow.MinDifficulty {
		return newError(RuleProofOfWork, candidate.Index, pow.MinDifficulty, candidate.Difficulty, "difficulty below minimum")
	}

	if !pow.IsSolved(candidate.Hash, candidate.Difficulty) {
		return newError(RuleProofOfWork, candidate.Index, candidate.Difficulty, candidate.Hash, "hash does not meet difficulty")
	}

	return nil
}

func checkLinkage(candidate database.Block, parent database.Block) error {
	if candidate.Index != parent.Index+1 {
		return newError(RuleLinkage, candidate.Index, parent.Index+1, candidate.Index, "invalid block index")
	}

	if candidate.PrevHash != parent.Hash {
		return newError(RuleLinkage, candidate.Index, parent.Hash, candidate.PrevHash, "invalid previous hash")
	}

	return nil
}

func checkDoubleSpend(candidate database.Block, _ database.Block) error {
	seen := make(map[string]struct{})

	for _, tx := range candidate.Trans {
		for _, in := range tx.Inputs {
			key := in.Outpoint()
			if _, exists := seen[key]; exists {
				ve := newError(RuleDoubleSpend, candidate.Index, "unique outpoints", key, "double spend detected")
				ve.Fatal = true
				return ve
			}
			seen[key] = struct{}{}
		}
	}

	return nil
}
