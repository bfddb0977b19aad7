package state

import (
	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/monitor"
	"github.com/auriumchain/node/foundation/blockchain/peer"
	"github.com/auriumchain/node/foundation/blockchain/pow"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// hashrateWindow is the number of blocks the hashrate is estimated over.
const hashrateWindow = 20

// =============================================================================

// QueryGenesisHash returns the hash of the pinned genesis block.
func (s *State) QueryGenesisHash() string {
	return s.db.Genesis().Hash
}

// QueryHeight returns the index of the tip of the chain.
func (s *State) QueryHeight() uint64 {
	return s.db.Height()
}

// QueryLatestBlock returns a copy the current latest block.
func (s *State) QueryLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// QueryBlocksByNumber returns the blocks in [from, to] in ascending order.
// QueryLatest may be used for either bound.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	if from == QueryLatest {
		from = s.db.Height()
		to = from
	}
	if to == QueryLatest {
		to = s.db.Height()
	}

	return s.db.Range(from, to)
}

// QueryBlockByNumber returns the block at the specified index.
func (s *State) QueryBlockByNumber(index uint64) (database.Block, error) {
	return s.db.GetBlock(index)
}

// QueryBlockByHash returns the block with the specified hash.
func (s *State) QueryBlockByHash(hash string) (database.Block, error) {
	return s.db.GetBlockByHash(hash)
}

// QueryBalance returns the unspent balance of the address.
func (s *State) QueryBalance(address string) uint64 {
	return s.db.Balance(address)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryMempool returns the pending transactions in selection order.
func (s *State) QueryMempool() []database.Tx {
	return s.mempool.PickBest(-1)
}

// QueryDifficulty returns the difficulty the next block is mined at.
func (s *State) QueryDifficulty() uint {
	return s.nextDifficulty(s.db.LatestBlock())
}

// QueryHashrate estimates the network hashrate over the latest blocks.
func (s *State) QueryHashrate() float64 {
	height := s.db.Height()

	var from uint64
	if height >= hashrateWindow {
		from = height - hashrateWindow + 1
	}

	return pow.EstimateHashrate(s.db.Range(from, height), hashrateWindow)
}

// QueryStatus returns the status document exchanged with peers.
func (s *State) QueryStatus() peer.PeerStatus {
	tip := s.db.LatestBlock()

	return peer.PeerStatus{
		LatestBlockHash:   tip.Hash,
		LatestBlockNumber: tip.Index,
		Difficulty:        s.nextDifficulty(tip),
		KnownPeers:        s.knownPeers.Copy(s.host),
	}
}

// ValidateChain re-runs the whole chain audit against the stored blocks.
func (s *State) ValidateChain() error {
	return s.validator.ValidateChain(s.db.Blocks())
}

// QueryAlerts returns up to n of the latest monitor alerts, or every
// critical alert when critical is set.
func (s *State) QueryAlerts(n int, critical bool) []monitor.Alert {
	if critical {
		return s.monitor.Critical()
	}
	return s.monitor.Recent(n)
}
