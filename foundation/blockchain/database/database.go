// Package database handles the ledger state: the ordered chain of blocks
// starting at the pinned genesis block, and the persistence of that chain
// through a pluggable storage backend.
package database

import (
	"fmt"
	"sync"
)

// Database manages the chain of blocks. All mutation happens through Append
// which holds the write lock across the append, the storage write and the
// tip update.
type Database struct {
	mu sync.RWMutex

	genesis Block
	blocks  []Block
	byHash  map[string]uint64
	storage Storage
	ev      func(v string, args ...any)
}

// New constructs the ledger state from what the storage holds. An empty
// storage is seeded with the genesis block. A stored chain starting with a
// different genesis block is rejected.
func New(genesis Block, storage Storage, evHandler func(v string, args ...any)) (*Database, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	blocks, err := storage.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load chain: %w", err)
	}

	if len(blocks) == 0 {
		ev("database: New: seeding storage with genesis[%s]", genesis.Hash)
		if err := storage.PutBlock(genesis); err != nil {
			return nil, fmt.Errorf("seed genesis: %w", err)
		}
		blocks = []Block{genesis}
	}

	if blocks[0].Hash != genesis.Hash || blocks[0].HeaderHash() != genesis.Hash {
		return nil, fmt.Errorf("%w: got %s, exp %s", ErrForeignChain, blocks[0].Hash, genesis.Hash)
	}

	db := Database{
		genesis: genesis,
		blocks:  make([]Block, 0, len(blocks)),
		byHash:  make(map[string]uint64, len(blocks)),
		storage: storage,
		ev:      ev,
	}

	for i, block := range blocks {
		if block.Index != uint64(i) {
			return nil, fmt.Errorf("%w: position %d holds index %d", ErrBrokenStorage, i, block.Index)
		}
		if i > 0 && block.PrevHash != blocks[i-1].Hash {
			return nil, fmt.Errorf("%w: block %d previous hash %s, exp %s", ErrBrokenStorage, i, block.PrevHash, blocks[i-1].Hash)
		}

		db.blocks = append(db.blocks, block)
		db.byHash[block.Hash] = block.Index
	}

	ev("database: New: loaded height[%d] tip[%s]", db.blocks[len(db.blocks)-1].Index, db.blocks[len(db.blocks)-1].Hash)

	return &db, nil
}

// Close closes the storage backend.
func (db *Database) Close() error {
	return db.storage.Close()
}

// Genesis returns the genesis block this ledger was constructed with.
func (db *Database) Genesis() Block {
	return db.genesis
}

// Append adds a block to the tip of the chain and persists it. The caller
// is expected to have validated the block. The block must extend the tip.
// A storage failure is reported as a PersistenceError while the in-memory
// append stands.
func (db *Database) Append(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tip := db.blocks[len(db.blocks)-1]
	if block.Index != tip.Index+1 || block.PrevHash != tip.Hash {
		return fmt.Errorf("%w: got blk[%d] prev[%s], tip blk[%d] hash[%s]", ErrNotNextBlock, block.Index, block.PrevHash, tip.Index, tip.Hash)
	}

	db.blocks = append(db.blocks, block)
	db.byHash[block.Hash] = block.Index

	if err := db.storage.PutBlock(block); err != nil {
		db.ev("database: Append: WARNING: blk[%d]: persist failed: %s", block.Index, err)
		return &PersistenceError{Index: block.Index, Err: err}
	}

	return nil
}

// LatestBlock returns the tip of the chain.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[len(db.blocks)-1]
}

// Height returns the index of the tip of the chain.
func (db *Database) Height() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[len(db.blocks)-1].Index
}

// GetBlock returns the block at the specified index.
func (db *Database) GetBlock(index uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if index >= uint64(len(db.blocks)) {
		return Block{}, fmt.Errorf("%w: index %d", ErrNotFound, index)
	}

	return db.blocks[index], nil
}

// GetBlockByHash returns the block with the specified hash.
func (db *Database) GetBlockByHash(hash string) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	index, exists := db.byHash[hash]
	if !exists {
		return Block{}, fmt.Errorf("%w: hash %s", ErrNotFound, hash)
	}

	return db.blocks[index], nil
}

// Range returns the blocks in the closed range [from, to] in ascending index
// order. The range is clipped to the tip.
func (db *Database) Range(from uint64, to uint64) []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	last := uint64(len(db.blocks)) - 1
	if to > last {
		to = last
	}
	if from > to {
		return nil
	}

	blocks := make([]Block, to-from+1)
	copy(blocks, db.blocks[from:to+1])

	return blocks
}

// Blocks returns a copy of the entire chain.
func (db *Database) Blocks() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	copy(blocks, db.blocks)

	return blocks
}

// SpentOutpoints returns the set of outpoints consumed by non coinbase
// inputs across the chain.
func (db *Database) SpentOutpoints() map[string]struct{} {
	db.mu.RLock()
	defer db.mu.RUnlock()

	spent := make(map[string]struct{})
	for _, block := range db.blocks {
		for _, tx := range block.Trans {
			if tx.IsCoinbase() {
				continue
			}
			for _, in := range tx.Inputs {
				spent[in.Outpoint()] = struct{}{}
			}
		}
	}

	return spent
}

// Balance returns the sum of the unspent outputs paying the address.
func (db *Database) Balance(address string) uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	unspent := make(map[string]uint64)
	for _, block := range db.blocks {
		for _, tx := range block.Trans {
			if !tx.IsCoinbase() {
				for _, in := range tx.Inputs {
					delete(unspent, in.Outpoint())
				}
			}

			for i, out := range tx.Outputs {
				if out.Address == address {
					unspent[TxInput{PrevTxID: tx.ID, OutputIndex: uint32(i)}.Outpoint()] = out.Amount
				}
			}
		}
	}

	var balance uint64
	for _, amount := range unspent {
		balance += amount
	}

	return balance
}

// Persist rewrites the entire chain to the storage backend.
func (db *Database) Persist() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.storage.SaveAll(db.blocks); err != nil {
		return &PersistenceError{Index: db.blocks[len(db.blocks)-1].Index, Err: err}
	}

	return nil
}
