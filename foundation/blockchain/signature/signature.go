// Package signature provides the signer boundary for the blockchain. The
// core only signs and verifies opaque byte blobs and never inspects which
// concrete scheme is in use.
package signature

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Set of supported scheme names.
const (
	SchemeECDSA     = "ecdsa"
	SchemeDilithium = "dilithium5"
	SchemeComposite = "composite"
)

// Signer represents the behavior required to sign a message.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
	PublicKey() []byte
	Scheme() string
}

// Verifier represents the behavior required to verify a signature blob
// against a message and public key material.
type Verifier interface {
	Verify(sig []byte, msg []byte, pub []byte) bool
}

// NewVerifier returns the verifier for the named scheme.
func NewVerifier(scheme string) (Verifier, error) {
	switch scheme {
	case SchemeECDSA:
		return ECDSAVerifier{}, nil
	case SchemeDilithium:
		return DilithiumVerifier{}, nil
	case SchemeComposite:
		return NewCompositeVerifier(ECDSAVerifier{}, DilithiumVerifier{}), nil
	}

	return nil, fmt.Errorf("unknown signature scheme %q", scheme)
}

// Address derives a printable account address from public key material. The
// address is the last 20 bytes of the Keccak-256 digest of the key.
func Address(pub []byte) string {
	return common.BytesToAddress(crypto.Keccak256(pub)[12:]).Hex()
}

// =============================================================================

// pack concatenates the parts with a u32 little endian length prefix each.
func pack(parts [][]byte) []byte {
	var buf []byte
	for _, p := range parts {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p)))
		buf = append(buf, p...)
	}

	return buf
}

// unpack splits a blob produced by pack.
func unpack(blob []byte) ([][]byte, error) {
	var parts [][]byte
	for len(blob) > 0 {
		if len(blob) < 4 {
			return nil, errors.New("truncated length prefix")
		}

		n := binary.LittleEndian.Uint32(blob)
		blob = blob[4:]
		if uint64(n) > uint64(len(blob)) {
			return nil, errors.New("truncated part")
		}

		parts = append(parts, blob[:n])
		blob = blob[n:]
	}

	return parts, nil
}
