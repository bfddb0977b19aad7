package database

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/auriumchain/node/foundation/blockchain/hash"
	"github.com/auriumchain/node/foundation/blockchain/merkle"
)

// Block represents a group of transactions batched together. The hash
// commits to the header fields only, the transactions are bound through
// the merkle root.
type Block struct {
	Index        uint64 `json:"index"`         // Height, parent index + 1.
	Timestamp    int64  `json:"timestamp"`     // Unix seconds the block was assembled.
	Trans        []Tx   `json:"transactions"`  // Coinbase first.
	PrevHash     string `json:"previous_hash"` // Hash of the parent block.
	Hash         string `json:"hash"`          // Header hash once mined, empty before.
	Nonce        uint64 `json:"nonce"`         // Value identified to solve the hash puzzle.
	Difficulty   uint   `json:"difficulty"`    // Number of leading zero hex digits required.
	MinerAddress string `json:"miner_address"` // Beneficiary of the coinbase.
	MerkleRoot   string `json:"merkle_root"`   // Merkle root over the transaction ids.
}

// NewBlock constructs an unmined block on top of the specified parent. The
// nonce is zero and the hash is empty until the block is mined.
func NewBlock(parent Block, trans []Tx, difficulty uint, minerAddress string, timestamp int64) (Block, error) {
	root, err := MerkleRoot(trans)
	if err != nil {
		return Block{}, err
	}

	b := Block{
		Index:        parent.Index + 1,
		Timestamp:    timestamp,
		Trans:        trans,
		PrevHash:     parent.Hash,
		Difficulty:   difficulty,
		MinerAddress: minerAddress,
		MerkleRoot:   root,
	}

	return b, nil
}

// HeaderHash recomputes the hash of the block header using the current
// nonce. The stored Hash field is not consulted.
func (b Block) HeaderHash() string {
	var buf []byte

	buf = binary.LittleEndian.AppendUint64(buf, b.Index)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(b.Timestamp))
	buf = appendString(buf, b.MerkleRoot)
	buf = appendString(buf, b.PrevHash)
	buf = binary.LittleEndian.AppendUint64(buf, b.Nonce)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(b.Difficulty))
	buf = appendString(buf, b.MinerAddress)

	return hash.Hex(buf)
}

// Size returns the length in bytes of the serialized block.
func (b Block) Size() int {
	data, err := json.Marshal(b)
	if err != nil {
		return 0
	}

	return len(data)
}

// Coinbase returns the first transaction of the block when it is a coinbase.
func (b Block) Coinbase() (Tx, bool) {
	if len(b.Trans) == 0 || !b.Trans[0].IsCoinbase() {
		return Tx{}, false
	}

	return b.Trans[0], true
}

// String implements the Stringer interface for logging.
func (b Block) String() string {
	return fmt.Sprintf("blk[%d]:%s:prev[%s]:diff[%d]:trans[%d]", b.Index, b.Hash, b.PrevHash, b.Difficulty, len(b.Trans))
}

// =============================================================================

// MerkleRoot returns the hex encoded merkle root over the transactions. An
// empty transaction set yields the all zero root.
func MerkleRoot(trans []Tx) (string, error) {
	tree, err := merkle.NewTree(trans)
	if err != nil {
		return "", fmt.Errorf("merkle tree: %w", err)
	}

	return tree.RootHex(), nil
}

// VerifyMerkleRoot rebuilds the merkle tree over the block transactions and
// compares its root with the root committed in the header.
func (b Block) VerifyMerkleRoot() error {
	tree, err := merkle.NewTree(b.Trans)
	if err != nil {
		return fmt.Errorf("merkle tree: %w", err)
	}

	if err := tree.Verify(); err != nil {
		return err
	}

	if root := tree.RootHex(); root != b.MerkleRoot {
		return fmt.Errorf("merkle root mismatch, got %s, exp %s", b.MerkleRoot, root)
	}

	return nil
}
