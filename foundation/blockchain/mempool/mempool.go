// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/mempool/selector"
)

// Set of error variables for mempool admission.
var (
	ErrCoinbase = errors.New("coinbase transactions are not accepted")
	ErrConflict = errors.New("transaction spends an output already spent by a pending transaction")
)

// Mempool represents a cache of pending transactions keyed by transaction
// id with a second index on the outpoints they spend.
type Mempool struct {
	mu       sync.RWMutex
	pool     map[string]database.Tx
	spends   map[string]string
	selectFn selector.Func
}

// New constructs a new mempool using the default sort strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyFee)
}

// NewWithStrategy constructs a new mempool with specified sort strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]database.Tx),
		spends:   make(map[string]string),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transaction in the mempool. A transaction
// spending an outpoint already spent by a different pending transaction is
// refused.
func (mp *Mempool) Upsert(tx database.Tx) (int, error) {
	if tx.IsCoinbase() {
		return 0, ErrCoinbase
	}

	if err := tx.VerifyID(); err != nil {
		return 0, err
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, in := range tx.Inputs {
		if id, exists := mp.spends[in.Outpoint()]; exists && id != tx.ID {
			return 0, fmt.Errorf("%w: %s by %s", ErrConflict, in.Outpoint(), id)
		}
	}

	mp.pool[tx.ID] = tx
	for _, in := range tx.Inputs {
		mp.spends[in.Outpoint()] = tx.ID
	}

	return len(mp.pool), nil
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.delete(tx.ID)
}

// RemoveCommitted drops every pending transaction included in the block
// and every pending transaction conflicting with one of its inputs.
func (mp *Mempool) RemoveCommitted(block database.Block) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	before := len(mp.pool)

	for _, tx := range block.Trans {
		mp.delete(tx.ID)

		if tx.IsCoinbase() {
			continue
		}
		for _, in := range tx.Inputs {
			if id, exists := mp.spends[in.Outpoint()]; exists {
				mp.delete(id)
			}
		}
	}

	return before - len(mp.pool)
}

// Copy returns a list of the current transaction in the pool.
func (mp *Mempool) Copy() []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	cpy := make([]database.Tx, 0, len(mp.pool))
	for _, tx := range mp.pool {
		cpy = append(cpy, tx)
	}

	return cpy
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.Tx)
	mp.spends = make(map[string]string)
}

// PickBest uses the configured sort strategy to return the next set
// of transactions for the next block.
func (mp *Mempool) PickBest(howMany int) []database.Tx {
	return mp.selectFn(mp.Copy(), howMany)
}

// =============================================================================

// delete removes the transaction and its outpoint index entries. The caller
// must hold the write lock.
func (mp *Mempool) delete(id string) {
	tx, exists := mp.pool[id]
	if !exists {
		return
	}

	delete(mp.pool, id)
	for _, in := range tx.Inputs {
		if mp.spends[in.Outpoint()] == id {
			delete(mp.spends, in.Outpoint())
		}
	}
}
