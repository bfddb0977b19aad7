// Package memory implements the database.Storage interface on top of an
// in-memory slice. Nothing survives the process.
package memory

import (
	"fmt"
	"sync"

	"github.com/auriumchain/node/foundation/blockchain/database"
)

// Memory represents the in-memory storage implementation.
type Memory struct {
	mu     sync.RWMutex
	blocks []database.Block
	byHash map[string]uint64
}

// New constructs an empty memory storage.
func New() *Memory {
	return &Memory{
		byHash: make(map[string]uint64),
	}
}

// Close has nothing to release.
func (m *Memory) Close() error {
	return nil
}

// PutBlock stores the block at its index. A block may replace the entry at
// its index or extend the stored chain by one.
func (m *Memory) PutBlock(block database.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case block.Index == uint64(len(m.blocks)):
		m.blocks = append(m.blocks, block)
	case block.Index < uint64(len(m.blocks)):
		delete(m.byHash, m.blocks[block.Index].Hash)
		m.blocks[block.Index] = block
	default:
		return fmt.Errorf("block %d leaves a gap after index %d", block.Index, len(m.blocks)-1)
	}

	m.byHash[block.Hash] = block.Index

	return nil
}

// GetBlock returns the block at the specified index.
func (m *Memory) GetBlock(index uint64) (database.Block, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if index >= uint64(len(m.blocks)) {
		return database.Block{}, false, nil
	}

	return m.blocks[index], true, nil
}

// GetBlockByHash returns the block with the specified hash.
func (m *Memory) GetBlockByHash(hash string) (database.Block, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	index, exists := m.byHash[hash]
	if !exists {
		return database.Block{}, false, nil
	}

	return m.blocks[index], true, nil
}

// LatestIndex returns the index of the last stored block.
func (m *Memory) LatestIndex() (uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.blocks) == 0 {
		return 0, false, nil
	}

	return uint64(len(m.blocks) - 1), true, nil
}

// LoadAll returns a copy of every stored block in index order.
func (m *Memory) LoadAll() ([]database.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blocks := make([]database.Block, len(m.blocks))
	copy(blocks, m.blocks)

	return blocks, nil
}

// SaveAll replaces the stored chain.
func (m *Memory) SaveAll(blocks []database.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = make([]database.Block, len(blocks))
	copy(m.blocks, blocks)

	m.byHash = make(map[string]uint64, len(blocks))
	for _, block := range blocks {
		m.byHash[block.Hash] = block.Index
	}

	return nil
}
