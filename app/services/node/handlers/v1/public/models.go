package public

import (
	"github.com/auriumchain/node/business/sys/validate"
	"github.com/auriumchain/node/foundation/blockchain/peer"
)

type status struct {
	GenesisHash     string      `json:"genesis_hash"`
	Height          uint64      `json:"height"`
	LatestBlockHash string      `json:"latest_block_hash"`
	Difficulty      uint        `json:"difficulty"`
	Hashrate        float64     `json:"hashrate"`
	Uncommitted     int         `json:"uncommitted"`
	KnownPeers      []peer.Peer `json:"known_peers"`
}

type balance struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
	Height  uint64 `json:"height"`
}

type chainCheck struct {
	Valid  bool   `json:"valid"`
	Height uint64 `json:"height"`
	Rule   string `json:"rule,omitempty"`
	Error  string `json:"error,omitempty"`
}

type accepted struct {
	Status string `json:"status"`
	ID     string `json:"id"`
	Index  uint64 `json:"index,omitempty"`
}

// blockRange holds the bounds of a block list request.
type blockRange struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to" validate:"gtefield=From"`
}

// Validate checks the range is ascending.
func (br blockRange) Validate() error {
	return validate.Check(br)
}
