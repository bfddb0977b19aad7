package database

import (
	"errors"
	"fmt"
)

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain. The
// boolean results report presence, a missing block is not an error.
type Storage interface {
	PutBlock(block Block) error
	GetBlock(index uint64) (Block, bool, error)
	GetBlockByHash(hash string) (Block, bool, error)
	LatestIndex() (uint64, bool, error)
	LoadAll() ([]Block, error)
	SaveAll(blocks []Block) error
	Close() error
}

// =============================================================================

// Set of error variables for the ledger state.
var (
	ErrNotFound      = errors.New("block not found")
	ErrForeignChain  = errors.New("stored chain has a foreign genesis block")
	ErrNotNextBlock  = errors.New("block does not extend the chain tip")
	ErrBrokenStorage = errors.New("stored chain is not linked")
)

// PersistenceError is returned when a block was appended to the in-memory
// chain but the storage write failed. The in-memory chain stays
// authoritative for the process lifetime.
type PersistenceError struct {
	Index uint64
	Err   error
}

// Error implements the error interface.
func (pe *PersistenceError) Error() string {
	return fmt.Sprintf("persist block %d: %s", pe.Index, pe.Err)
}

// Unwrap provides access to the storage error.
func (pe *PersistenceError) Unwrap() error {
	return pe.Err
}

// IsPersistenceError checks if an error of type PersistenceError exists.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
