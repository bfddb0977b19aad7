// Package disk implements the database.Storage interface by storing every
// block in its own JSON file on disk, named by block index.
package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strconv"
	"sync"

	"github.com/auriumchain/node/foundation/blockchain/database"
)

// Disk represents the serialization implementation for reading and storing
// blocks in their own separate files on disk.
type Disk struct {
	dbPath string

	mu     sync.RWMutex
	latest int64
	byHash map[string]uint64
}

// New constructs a Disk value for use. The existing files are scanned once
// to learn the tip and build the hash index.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	d := Disk{
		dbPath: dbPath,
		latest: -1,
		byHash: make(map[string]uint64),
	}

	for index := uint64(0); ; index++ {
		block, err := d.read(index)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return nil, err
		}

		d.byHash[block.Hash] = block.Index
		d.latest = int64(index)
	}

	return &d, nil
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each new block and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// PutBlock takes the specified block and stores it on disk in a file
// labeled with the block index.
func (d *Disk) PutBlock(block database.Block) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if int64(block.Index) > d.latest+1 {
		return fmt.Errorf("block %d leaves a gap after index %d", block.Index, d.latest)
	}

	if err := d.write(block); err != nil {
		return err
	}

	d.byHash[block.Hash] = block.Index
	if int64(block.Index) > d.latest {
		d.latest = int64(block.Index)
	}

	return nil
}

// GetBlock searches the blockchain on disk to locate and return the
// contents of the specified block by index.
func (d *Disk) GetBlock(index uint64) (database.Block, bool, error) {
	block, err := d.read(index)
	if errors.Is(err, fs.ErrNotExist) {
		return database.Block{}, false, nil
	}
	if err != nil {
		return database.Block{}, false, err
	}

	return block, true, nil
}

// GetBlockByHash uses the hash index to locate the block on disk.
func (d *Disk) GetBlockByHash(hash string) (database.Block, bool, error) {
	d.mu.RLock()
	index, exists := d.byHash[hash]
	d.mu.RUnlock()

	if !exists {
		return database.Block{}, false, nil
	}

	return d.GetBlock(index)
}

// LatestIndex returns the index of the last block on disk.
func (d *Disk) LatestIndex() (uint64, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.latest < 0 {
		return 0, false, nil
	}

	return uint64(d.latest), true, nil
}

// LoadAll reads every block from disk starting with block 0.
func (d *Disk) LoadAll() ([]database.Block, error) {
	d.mu.RLock()
	latest := d.latest
	d.mu.RUnlock()

	blocks := make([]database.Block, 0, latest+1)
	for index := int64(0); index <= latest; index++ {
		block, err := d.read(uint64(index))
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	return blocks, nil
}

// SaveAll writes every block to disk and removes any file past the new tip.
func (d *Disk) SaveAll(blocks []database.Block) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	byHash := make(map[string]uint64, len(blocks))
	for _, block := range blocks {
		if err := d.write(block); err != nil {
			return err
		}
		byHash[block.Hash] = block.Index
	}

	for index := int64(len(blocks)); index <= d.latest; index++ {
		if err := os.Remove(d.getPath(uint64(index))); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	d.byHash = byHash
	d.latest = int64(len(blocks)) - 1

	return nil
}

// =============================================================================

// write marshals the block in a human readable format and writes it to the
// file for its index.
func (d *Disk) write(block database.Block) error {
	data, err := json.MarshalIndent(block, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.OpenFile(d.getPath(block.Index), os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return err
	}

	return nil
}

// read opens and decodes the file for the specified index.
func (d *Disk) read(index uint64) (database.Block, error) {
	f, err := os.OpenFile(d.getPath(index), os.O_RDONLY, 0600)
	if err != nil {
		return database.Block{}, err
	}
	defer f.Close()

	var block database.Block
	if err := json.NewDecoder(f).Decode(&block); err != nil {
		return database.Block{}, fmt.Errorf("decode block %d: %w", index, err)
	}

	return block, nil
}

// getPath forms the path to the specified block.
func (d *Disk) getPath(index uint64) string {
	name := strconv.FormatUint(index, 10)
	return path.Join(d.dbPath, fmt.Sprintf("%s.json", name))
}
