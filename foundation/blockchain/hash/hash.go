// Package hash provides the content hash used for block hashes, transaction
// ids and merkle nodes. The digest is BLAKE2b-256 applied to the SHA-256 of
// the input so a break of either function alone does not break the result.
package hash

import (
	"crypto/sha256"
	gohash "hash"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/blake2b"
)

// Size is the number of bytes in a digest.
const Size = 32

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// Sum returns the cascaded digest of the data.
func Sum(data []byte) [Size]byte {
	first := sha256.Sum256(data)
	return blake2b.Sum256(first[:])
}

// Hex returns the cascaded digest of the data as lowercase hex.
func Hex(data []byte) string {
	sum := Sum(data)
	return common.Bytes2Hex(sum[:])
}

// Bytes decodes a hex digest produced by Hex. Invalid input yields nil.
func Bytes(hexHash string) []byte {
	if len(hexHash) != Size*2 {
		return nil
	}
	return common.Hex2Bytes(hexHash)
}

// =============================================================================

// cascade implements the hash.Hash interface so the digest can be used as
// a streaming hash strategy.
type cascade struct {
	inner gohash.Hash
}

// New returns a streaming form of the cascaded digest.
func New() gohash.Hash {
	return &cascade{inner: sha256.New()}
}

func (c *cascade) Write(p []byte) (int, error) {
	return c.inner.Write(p)
}

func (c *cascade) Sum(b []byte) []byte {
	sum := blake2b.Sum256(c.inner.Sum(nil))
	return append(b, sum[:]...)
}

func (c *cascade) Reset() {
	c.inner.Reset()
}

func (c *cascade) Size() int {
	return Size
}

func (c *cascade) BlockSize() int {
	return c.inner.BlockSize()
}
