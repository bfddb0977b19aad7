// Package genesis maintains the hard-coded, hash pinned first block of the
// chain. Every node constructs the identical block from these constants.
package genesis

import (
	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/hash"
)

// The genesis block parameters. Changing any of them changes Hash and forks
// the node off the network.
const (
	Timestamp    int64  = 1729382400
	Message      string = "AuriumChain Genesis - October 20, 2025 - Autonomous & Decentralized"
	Difficulty   uint   = 4
	MinerAddress string = "GENESIS_ANONYMOUS"
	Nonce        uint64 = 47202
)

// Hash is the pinned hash of the genesis block. Any chain whose first block
// reports a different hash is rejected wholesale.
const Hash = "0000dbcaf4f4394b42d2d806bd0b067c7eccbe1e70517f91c0d48abd4fe0ebb7"

// Block constructs the genesis block. The block carries a single coinbase
// shaped transaction paying nothing to the genesis message.
func Block() database.Block {
	tx := database.NewCoinbaseTx(0, Message, 0, Timestamp)

	// A single transaction can not fail the merkle construction.
	root, _ := database.MerkleRoot([]database.Tx{tx})

	b := database.Block{
		Index:        0,
		Timestamp:    Timestamp,
		Trans:        []database.Tx{tx},
		PrevHash:     hash.ZeroHash,
		Nonce:        Nonce,
		Difficulty:   Difficulty,
		MinerAddress: MinerAddress,
		MerkleRoot:   root,
	}
	b.Hash = b.HeaderHash()

	return b
}

// IsGenesis reports whether the block is the pinned genesis block: index
// zero, the stored hash equal to the pinned hash and the header re-hashing
// to it.
func IsGenesis(b database.Block) bool {
	return b.Index == 0 && b.Hash == Hash && b.HeaderHash() == Hash
}
