// Package storage selects the persistence backend for the ledger state.
package storage

import (
	"fmt"
	"path/filepath"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/database/storage/disk"
	"github.com/auriumchain/node/foundation/blockchain/database/storage/jsonfile"
	"github.com/auriumchain/node/foundation/blockchain/database/storage/leveldb"
	"github.com/auriumchain/node/foundation/blockchain/database/storage/memory"
)

// Set of supported backend kinds.
const (
	KindMemory   = "memory"
	KindJSONFile = "jsonfile"
	KindDisk     = "disk"
	KindLevelDB  = "leveldb"
)

// New constructs the backend of the specified kind rooted at dbPath. The
// jsonfile backend writes dbPath/chain.json.
func New(kind string, dbPath string, evHandler func(v string, args ...any)) (database.Storage, error) {
	switch kind {
	case KindMemory:
		return memory.New(), nil
	case KindJSONFile:
		return jsonfile.New(filepath.Join(dbPath, "chain.json"))
	case KindDisk:
		return disk.New(dbPath)
	case KindLevelDB:
		return leveldb.New(dbPath, evHandler)
	}

	return nil, fmt.Errorf("unknown storage kind %q", kind)
}

// Migrate copies every block from one backend into another.
func Migrate(from database.Storage, to database.Storage) (int, error) {
	blocks, err := from.LoadAll()
	if err != nil {
		return 0, fmt.Errorf("load source: %w", err)
	}

	if err := to.SaveAll(blocks); err != nil {
		return 0, fmt.Errorf("save target: %w", err)
	}

	return len(blocks), nil
}
