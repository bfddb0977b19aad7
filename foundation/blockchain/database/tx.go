package database

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/auriumchain/node/foundation/blockchain/hash"
	"github.com/auriumchain/node/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common"
)

// CoinbasePrevTxID is the sentinel previous transaction id carried by the
// single input of a coinbase transaction. It marks "no previous output".
const CoinbasePrevTxID = hash.ZeroHash

// TxInput references an output of a previous transaction. The proof is an
// opaque authorization blob (hex) the core never interprets.
type TxInput struct {
	PrevTxID    string `json:"prev_tx_id"`
	OutputIndex uint32 `json:"output_index"`
	Proof       string `json:"proof,omitempty"`
}

// Outpoint returns the (previous transaction id, output index) reference as
// a single comparable key.
func (in TxInput) Outpoint() string {
	return fmt.Sprintf("%s:%d", in.PrevTxID, in.OutputIndex)
}

// TxOutput assigns an amount in the smallest unit to a recipient address.
type TxOutput struct {
	Amount  uint64 `json:"amount"`
	Address string `json:"address"`
}

// Tx is the transactional information between parties. The id is the hash
// of the canonical encoding of the inputs, outputs, timestamp and fee. Proofs
// and the signature payload are not part of the id so they can sign over it.
type Tx struct {
	ID        string     `json:"id"`
	Inputs    []TxInput  `json:"inputs"`
	Outputs   []TxOutput `json:"outputs"`
	Timestamp int64      `json:"timestamp"`
	Fee       uint64     `json:"fee"`
	PublicKey string     `json:"public_key,omitempty"`
	Signature string     `json:"signature,omitempty"`
}

// NewTx constructs a transaction and computes its id.
func NewTx(inputs []TxInput, outputs []TxOutput, fee uint64, timestamp int64) Tx {
	tx := Tx{
		Inputs:    inputs,
		Outputs:   outputs,
		Timestamp: timestamp,
		Fee:       fee,
	}
	tx.ID = tx.computeID()

	return tx
}

// NewCoinbaseTx constructs the reward granting transaction for the block at
// the specified height. The single input references the coinbase sentinel
// and carries the low 32 bits of the height so coinbase ids differ per block.
func NewCoinbaseTx(height uint64, address string, amount uint64, timestamp int64) Tx {
	inputs := []TxInput{
		{PrevTxID: CoinbasePrevTxID, OutputIndex: uint32(height)},
	}
	outputs := []TxOutput{
		{Amount: amount, Address: address},
	}

	return NewTx(inputs, outputs, 0, timestamp)
}

// IsCoinbase reports whether the transaction has exactly one input and that
// input references the coinbase sentinel.
func (tx Tx) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PrevTxID == CoinbasePrevTxID
}

// TotalOutput returns the sum of all output amounts.
func (tx Tx) TotalOutput() uint64 {
	var total uint64
	for _, out := range tx.Outputs {
		total += out.Amount
	}

	return total
}

// VerifyID checks the stored id matches the id computed from the content.
func (tx Tx) VerifyID() error {
	if exp := tx.computeID(); tx.ID != exp {
		return fmt.Errorf("transaction id mismatch, got %s, exp %s", tx.ID, exp)
	}

	return nil
}

// Sign sets the public key and signature payload using the specified signer.
// The signature covers the transaction id.
func (tx Tx) Sign(signer signature.Signer) (Tx, error) {
	if tx.ID == "" {
		tx.ID = tx.computeID()
	}

	sig, err := signer.Sign(hash.Bytes(tx.ID))
	if err != nil {
		return Tx{}, fmt.Errorf("sign tx: %w", err)
	}

	tx.PublicKey = common.Bytes2Hex(signer.PublicKey())
	tx.Signature = common.Bytes2Hex(sig)

	return tx, nil
}

// VerifySignature checks the signature payload against the transaction id.
func (tx Tx) VerifySignature(verifier signature.Verifier) error {
	if tx.Signature == "" || tx.PublicKey == "" {
		return errors.New("transaction is not signed")
	}

	if err := tx.VerifyID(); err != nil {
		return err
	}

	if !verifier.Verify(common.FromHex(tx.Signature), hash.Bytes(tx.ID), common.FromHex(tx.PublicKey)) {
		return errors.New("invalid transaction signature")
	}

	return nil
}

// Hash implements the merkle Hashable interface. The leaf value is the
// digest of the canonical encoding, which equals the id of a well formed
// transaction.
func (tx Tx) Hash() ([]byte, error) {
	sum := hash.Sum(tx.canonical())
	return sum[:], nil
}

// String implements the Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:%d:%d:%d", tx.ID, len(tx.Inputs), tx.TotalOutput(), tx.Fee)
}

// =============================================================================

func (tx Tx) computeID() string {
	return hash.Hex(tx.canonical())
}

// canonical produces the length prefixed little endian encoding the id is
// computed over.
func (tx Tx) canonical() []byte {
	var buf []byte

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = appendString(buf, in.PrevTxID)
		buf = binary.LittleEndian.AppendUint32(buf, in.OutputIndex)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Amount)
		buf = appendString(buf, out.Address)
	}

	buf = binary.LittleEndian.AppendUint64(buf, uint64(tx.Timestamp))
	buf = binary.LittleEndian.AppendUint64(buf, tx.Fee)

	return buf
}

// appendString writes a u32 length prefix followed by the string bytes.
func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}
