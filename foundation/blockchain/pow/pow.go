// Package pow implements the proof of work engine: the mining state machine,
// the difficulty adjustment and the hashrate estimation.
package pow

import (
	"context"
	"strings"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/hash"
)

// State represents where a block is in its mining lifecycle.
type State int

// Set of mining states.
const (
	Unmined State = iota
	Mining
	Mined
)

// String implements the Stringer interface.
func (s State) String() string {
	switch s {
	case Unmined:
		return "unmined"
	case Mining:
		return "mining"
	case Mined:
		return "mined"
	}
	return "unknown"
}

// DefaultBatch is the number of nonces tried between cancellation checks.
const DefaultBatch = 10_000

// IsSolved checks the hash to make sure it complies with the POW rules. We
// need to match a difficulty number of leading 0's.
func IsSolved(hashHex string, difficulty uint) bool {
	if len(hashHex) != hash.Size*2 || difficulty > uint(len(hashHex)) {
		return false
	}

	return strings.Count(hashHex[:difficulty], "0") == int(difficulty)
}

// =============================================================================

// Miner drives a single block from Unmined to Mined. It is not safe for
// concurrent use.
type Miner struct {
	block    database.Block
	state    State
	attempts uint64
}

// NewMiner constructs a miner for the block. The search starts at the
// block's current nonce.
func NewMiner(block database.Block) *Miner {
	block.Hash = ""

	return &Miner{
		block: block,
		state: Unmined,
	}
}

// Step tries up to n nonces. It reports whether the block is mined. Once
// mined further calls do nothing.
func (m *Miner) Step(n uint64) bool {
	if m.state == Mined {
		return true
	}
	m.state = Mining

	for range n {
		m.attempts++

		h := m.block.HeaderHash()
		if IsSolved(h, m.block.Difficulty) {
			m.block.Hash = h
			m.state = Mined
			return true
		}

		// Wraps around at the maximum nonce.
		m.block.Nonce++
	}

	return false
}

// Solve drives Step in batches until the block is mined or the context is
// cancelled. Cancellation is observed between batches.
func (m *Miner) Solve(ctx context.Context, batch uint64, evHandler func(v string, args ...any)) (database.Block, error) {
	if batch == 0 {
		batch = DefaultBatch
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	ev("pow: Solve: MINING: started: blk[%d] diff[%d]", m.block.Index, m.block.Difficulty)

	for {
		if err := ctx.Err(); err != nil {
			ev("pow: Solve: MINING: CANCELLED: attempts[%d]", m.attempts)
			return database.Block{}, err
		}

		if m.Step(batch) {
			ev("pow: Solve: MINING: SOLVED: blk[%d] hash[%s] attempts[%d]", m.block.Index, m.block.Hash, m.attempts)
			return m.block, nil
		}

		if m.attempts%(batch*100) == 0 {
			ev("pow: Solve: MINING: attempts[%d]", m.attempts)
		}
	}
}

// State returns the current mining state.
func (m *Miner) State() State {
	return m.state
}

// Nonce returns the next nonce to try, or the solving nonce once mined.
func (m *Miner) Nonce() uint64 {
	return m.block.Nonce
}

// Attempts returns the number of hashes computed so far.
func (m *Miner) Attempts() uint64 {
	return m.attempts
}

// Block returns the block in its current form. The hash is only set once
// the state is Mined.
func (m *Miner) Block() database.Block {
	return m.block
}

// Mine is a helper that constructs a miner and solves the block.
func Mine(ctx context.Context, block database.Block, evHandler func(v string, args ...any)) (database.Block, error) {
	return NewMiner(block).Solve(ctx, DefaultBatch, evHandler)
}
