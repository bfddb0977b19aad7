// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"
	"sort"

	"github.com/auriumchain/node/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyFee = "fee"
	StrategyAge = "age"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyFee: feeSelect,
	StrategyAge: ageSelect,
}

// Func defines a function that takes the pending transactions and selects
// howMany of them in an order based on the functions strategy. All selector
// functions MUST place a transaction after any pending transaction whose
// output it spends. Receiving -1 for howMany must return all the
// transactions in the strategies ordering.
type Func func(transactions []database.Tx, howMany int) []database.Tx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// feeSelect returns the transactions paying the highest fee first. Ties go
// to the older transaction, then to the lower id.
var feeSelect = func(txs []database.Tx, howMany int) []database.Tx {
	sort.Sort(byFee(txs))
	return withParents(txs, howMany)
}

// ageSelect returns the oldest transactions first. Ties go to the lower id.
var ageSelect = func(txs []database.Tx, howMany int) []database.Tx {
	sort.Sort(byAge(txs))
	return withParents(txs, howMany)
}

// withParents walks the sorted list and takes every transaction whose
// pending parents were already taken, deferring the others until their
// parents are in. Transactions whose parents never get in are dropped.
func withParents(sorted []database.Tx, howMany int) []database.Tx {
	if howMany < 0 || howMany > len(sorted) {
		howMany = len(sorted)
	}

	pending := make(map[string]struct{}, len(sorted))
	for _, tx := range sorted {
		pending[tx.ID] = struct{}{}
	}

	taken := make(map[string]struct{}, howMany)
	final := make([]database.Tx, 0, howMany)

	remaining := sorted
	for len(final) < howMany {
		var deferred []database.Tx
		progress := false

		for _, tx := range remaining {
			if len(final) == howMany {
				break
			}

			if !parentsTaken(tx, pending, taken) {
				deferred = append(deferred, tx)
				continue
			}

			final = append(final, tx)
			taken[tx.ID] = struct{}{}
			progress = true
		}

		if !progress || len(deferred) == 0 {
			break
		}
		remaining = deferred
	}

	return final
}

func parentsTaken(tx database.Tx, pending map[string]struct{}, taken map[string]struct{}) bool {
	for _, in := range tx.Inputs {
		if _, isPending := pending[in.PrevTxID]; !isPending {
			continue
		}
		if _, isTaken := taken[in.PrevTxID]; !isTaken {
			return false
		}
	}

	return true
}

// =============================================================================

// byFee provides sorting support by the transaction fee value.
type byFee []database.Tx

// Len returns the number of transactions in the list.
func (bf byFee) Len() int {
	return len(bf)
}

// Less helps to sort the list by fee in decending order to pick the
// transactions that provide the best reward.
func (bf byFee) Less(i, j int) bool {
	if bf[i].Fee != bf[j].Fee {
		return bf[i].Fee > bf[j].Fee
	}
	if bf[i].Timestamp != bf[j].Timestamp {
		return bf[i].Timestamp < bf[j].Timestamp
	}
	return bf[i].ID < bf[j].ID
}

// Swap moves transactions in the order of the fee value.
func (bf byFee) Swap(i, j int) {
	bf[i], bf[j] = bf[j], bf[i]
}

// =============================================================================

// byAge provides sorting support by the transaction timestamp.
type byAge []database.Tx

// Len returns the number of transactions in the list.
func (ba byAge) Len() int {
	return len(ba)
}

// Less helps to sort the list by timestamp in ascending order.
func (ba byAge) Less(i, j int) bool {
	if ba[i].Timestamp != ba[j].Timestamp {
		return ba[i].Timestamp < ba[j].Timestamp
	}
	return ba[i].ID < ba[j].ID
}

// Swap moves transactions in the order of the timestamp.
func (ba byAge) Swap(i, j int) {
	ba[i], ba[j] = ba[j], ba[i]
}
