package state

import (
	"errors"
	"fmt"

	"github.com/auriumchain/node/foundation/blockchain/database"
)

// Set of errors for transaction admission.
var (
	ErrAlreadySpent = errors.New("transaction spends an output already spent on chain")
	ErrUnsigned     = errors.New("transaction is not signed")
)

// SubmitTransaction accepts a transaction for inclusion in a future block.
func (s *State) SubmitTransaction(tx database.Tx) error {
	s.monitor.CheckTransaction(tx)

	if err := s.validateTransaction(tx); err != nil {
		return err
	}

	n, err := s.mempool.Upsert(tx)
	if err != nil {
		return err
	}

	s.evHandler("state: SubmitTransaction: tx[%s] mempool[%d]", tx.ID, n)

	s.signalStartMining()

	return nil
}

// =============================================================================

// validateTransaction checks the signature when there is one and makes sure
// no input spends an output already spent on chain.
func (s *State) validateTransaction(tx database.Tx) error {
	if err := tx.VerifyID(); err != nil {
		return err
	}

	switch {
	case tx.Signature == "":
		if s.requireSignatures {
			return ErrUnsigned
		}

	case s.verifier != nil:
		if err := tx.VerifySignature(s.verifier); err != nil {
			return err
		}
	}

	spent := s.db.SpentOutpoints()
	for _, in := range tx.Inputs {
		if _, exists := spent[in.Outpoint()]; exists {
			return fmt.Errorf("%w: %s", ErrAlreadySpent, in.Outpoint())
		}
	}

	return nil
}
