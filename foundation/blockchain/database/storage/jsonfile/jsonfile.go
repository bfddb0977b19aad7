// Package jsonfile implements the database.Storage interface by keeping the
// whole chain as a single JSON array in one file. Every write rewrites the
// file through a temporary file and a rename.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/auriumchain/node/foundation/blockchain/database"
)

// JSONFile represents the single file storage implementation.
type JSONFile struct {
	mu     sync.RWMutex
	path   string
	blocks []database.Block
}

// New constructs a JSONFile storage for the specified file. An existing
// file is read into memory.
func New(path string) (*JSONFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	jf := JSONFile{
		path: path,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &jf, nil
	case err != nil:
		return nil, err
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &jf.blocks); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	return &jf, nil
}

// Close has nothing to release since the file is closed after each write.
func (jf *JSONFile) Close() error {
	return nil
}

// PutBlock stores the block at its index and rewrites the file.
func (jf *JSONFile) PutBlock(block database.Block) error {
	jf.mu.Lock()
	defer jf.mu.Unlock()

	switch {
	case block.Index == uint64(len(jf.blocks)):
		jf.blocks = append(jf.blocks, block)
	case block.Index < uint64(len(jf.blocks)):
		jf.blocks[block.Index] = block
	default:
		return fmt.Errorf("block %d leaves a gap after index %d", block.Index, len(jf.blocks)-1)
	}

	return jf.write()
}

// GetBlock returns the block at the specified index.
func (jf *JSONFile) GetBlock(index uint64) (database.Block, bool, error) {
	jf.mu.RLock()
	defer jf.mu.RUnlock()

	if index >= uint64(len(jf.blocks)) {
		return database.Block{}, false, nil
	}

	return jf.blocks[index], true, nil
}

// GetBlockByHash returns the block with the specified hash.
func (jf *JSONFile) GetBlockByHash(hash string) (database.Block, bool, error) {
	jf.mu.RLock()
	defer jf.mu.RUnlock()

	for _, block := range jf.blocks {
		if block.Hash == hash {
			return block, true, nil
		}
	}

	return database.Block{}, false, nil
}

// LatestIndex returns the index of the last stored block.
func (jf *JSONFile) LatestIndex() (uint64, bool, error) {
	jf.mu.RLock()
	defer jf.mu.RUnlock()

	if len(jf.blocks) == 0 {
		return 0, false, nil
	}

	return uint64(len(jf.blocks) - 1), true, nil
}

// LoadAll returns a copy of every stored block in index order.
func (jf *JSONFile) LoadAll() ([]database.Block, error) {
	jf.mu.RLock()
	defer jf.mu.RUnlock()

	blocks := make([]database.Block, len(jf.blocks))
	copy(blocks, jf.blocks)

	return blocks, nil
}

// SaveAll replaces the stored chain and rewrites the file.
func (jf *JSONFile) SaveAll(blocks []database.Block) error {
	jf.mu.Lock()
	defer jf.mu.Unlock()

	jf.blocks = make([]database.Block, len(blocks))
	copy(jf.blocks, blocks)

	return jf.write()
}

// write replaces the file with the current chain.
func (jf *JSONFile) write() error {
	data, err := json.MarshalIndent(jf.blocks, "", "  ")
	if err != nil {
		return err
	}

	tmp := jf.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, jf.path)
}
