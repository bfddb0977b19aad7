// Package leveldb implements the database.Storage interface on top of an
// embedded goleveldb database. Blocks are stored as JSON under
// "block:<index>", the hash index under "hash:<hash>" and the tip under
// "latest_index".
package leveldb

import (
	"encoding/json"
	"strconv"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	ldbErrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	latestKey   = []byte("latest_index")
	blockPrefix = []byte("block:")
	hashPrefix  = []byte("hash:")
)

// Options returns the goleveldb options used to open the database.
func Options() *opt.Options {
	return &opt.Options{
		Compression:        opt.SnappyCompression,
		BlockCacheCapacity: 32 * opt.MiB,
		WriteBuffer:        16 * opt.MiB,
	}
}

// LevelDB defines a thin wrapper around leveldb.
type LevelDB struct {
	ldb *leveldb.DB
}

// New opens a leveldb instance defined by the given path. A corrupted
// database is recovered before use.
func New(path string, evHandler func(v string, args ...any)) (*LevelDB, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	// Open leveldb. If it doesn't exist, create it.
	ldb, err := leveldb.OpenFile(path, Options())

	// If the database is corrupted, attempt to recover.
	if _, corrupted := err.(*ldbErrors.ErrCorrupted); corrupted {
		ev("leveldb: New: WARNING: corruption detected for path %s: %s", path, err)

		ldb, err = leveldb.RecoverFile(path, Options())
		if err != nil {
			return nil, errors.Wrapf(err, "recover %s", path)
		}

		ev("leveldb: New: recovered from corruption for path %s", path)
	}

	// If the database cannot be opened for any other
	// reason, return the error wrapped.
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	return &LevelDB{ldb: ldb}, nil
}

// Close closes the leveldb instance.
func (db *LevelDB) Close() error {
	return db.ldb.Close()
}

// PutBlock writes the block, its hash index entry and the new tip in one
// atomic batch.
func (db *LevelDB) PutBlock(block database.Block) error {
	latest, exists, err := db.LatestIndex()
	if err != nil {
		return err
	}

	switch {
	case !exists && block.Index != 0:
		return errors.Errorf("block %d leaves a gap in an empty store", block.Index)
	case exists && block.Index > latest+1:
		return errors.Errorf("block %d leaves a gap after index %d", block.Index, latest)
	}

	batch := new(leveldb.Batch)
	if err := putBatch(batch, block); err != nil {
		return err
	}
	if !exists || block.Index > latest {
		batch.Put(latestKey, []byte(strconv.FormatUint(block.Index, 10)))
	}

	if err := db.ldb.Write(batch, nil); err != nil {
		return errors.Wrapf(err, "write block %d", block.Index)
	}

	return nil
}

// GetBlock returns the block at the specified index.
func (db *LevelDB) GetBlock(index uint64) (database.Block, bool, error) {
	return db.getBlock(blockKey(index))
}

// GetBlockByHash resolves the hash index and returns the block.
func (db *LevelDB) GetBlockByHash(hash string) (database.Block, bool, error) {
	data, err := db.ldb.Get(append(append([]byte{}, hashPrefix...), hash...), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return database.Block{}, false, nil
		}
		return database.Block{}, false, errors.Wrapf(err, "get hash %s", hash)
	}

	index, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return database.Block{}, false, errors.Wrapf(err, "parse index for hash %s", hash)
	}

	return db.GetBlock(index)
}

// LatestIndex returns the index of the last stored block.
func (db *LevelDB) LatestIndex() (uint64, bool, error) {
	data, err := db.ldb.Get(latestKey, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, "get latest index")
	}

	index, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, false, errors.Wrap(err, "parse latest index")
	}

	return index, true, nil
}

// LoadAll reads every block from index 0 to the stored tip.
func (db *LevelDB) LoadAll() ([]database.Block, error) {
	latest, exists, err := db.LatestIndex()
	if err != nil || !exists {
		return nil, err
	}

	blocks := make([]database.Block, 0, latest+1)
	for index := uint64(0); index <= latest; index++ {
		block, found, err := db.GetBlock(index)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errors.Errorf("block %d missing below tip %d", index, latest)
		}
		blocks = append(blocks, block)
	}

	return blocks, nil
}

// SaveAll replaces the stored chain in a single batch.
func (db *LevelDB) SaveAll(blocks []database.Block) error {
	batch := new(leveldb.Batch)

	for _, prefix := range [][]byte{blockPrefix, hashPrefix} {
		iter := db.ldb.NewIterator(util.BytesPrefix(prefix), nil)
		for iter.Next() {
			batch.Delete(append([]byte{}, iter.Key()...))
		}
		iter.Release()
		if err := iter.Error(); err != nil {
			return errors.Wrap(err, "iterate keys")
		}
	}
	batch.Delete(latestKey)

	for _, block := range blocks {
		if err := putBatch(batch, block); err != nil {
			return err
		}
	}
	if len(blocks) > 0 {
		batch.Put(latestKey, []byte(strconv.FormatUint(blocks[len(blocks)-1].Index, 10)))
	}

	if err := db.ldb.Write(batch, nil); err != nil {
		return errors.Wrap(err, "write chain")
	}

	return nil
}

// =============================================================================

func (db *LevelDB) getBlock(key []byte) (database.Block, bool, error) {
	data, err := db.ldb.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return database.Block{}, false, nil
		}
		return database.Block{}, false, errors.Wrapf(err, "get %s", key)
	}

	var block database.Block
	if err := json.Unmarshal(data, &block); err != nil {
		return database.Block{}, false, errors.Wrapf(err, "decode %s", key)
	}

	return block, true, nil
}

func putBatch(batch *leveldb.Batch, block database.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return errors.Wrapf(err, "encode block %d", block.Index)
	}

	batch.Put(blockKey(block.Index), data)
	batch.Put(append(append([]byte{}, hashPrefix...), block.Hash...), []byte(strconv.FormatUint(block.Index, 10)))

	return nil
}

func blockKey(index uint64) []byte {
	return strconv.AppendUint(append([]byte{}, blockPrefix...), index, 10)
}
