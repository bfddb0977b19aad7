package signature

import (
	"crypto/rand"
	"errors"
	"os"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/dilithium/mode5"
	"github.com/ethereum/go-ethereum/common"
)

// Dilithium signs with a post-quantum Dilithium mode 5 key pair.
type Dilithium struct {
	pub  sign.PublicKey
	priv sign.PrivateKey
}

// GenerateDilithium constructs a signer around a new random key pair.
func GenerateDilithium() (*Dilithium, error) {
	pub, priv, err := mode5.Scheme().GenerateKey()
	if err != nil {
		return nil, err
	}

	return &Dilithium{pub: pub, priv: priv}, nil
}

// NewDilithiumFromSeed deterministically derives a key pair from the seed.
func NewDilithiumFromSeed(seed []byte) (*Dilithium, error) {
	scheme := mode5.Scheme()
	if len(seed) != scheme.SeedSize() {
		return nil, errors.New("invalid dilithium seed size")
	}

	pub, priv := scheme.DeriveKey(seed)

	return &Dilithium{pub: pub, priv: priv}, nil
}

// LoadDilithium reads a hex encoded seed from the file.
func LoadDilithium(path string) (*Dilithium, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return NewDilithiumFromSeed(common.FromHex(string(data)))
}

// GenerateDilithiumSeed writes a new random hex encoded seed to the file and
// returns the derived signer.
func GenerateDilithiumSeed(path string) (*Dilithium, error) {
	seed := make([]byte, mode5.Scheme().SeedSize())
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, []byte(common.Bytes2Hex(seed)), 0600); err != nil {
		return nil, err
	}

	return NewDilithiumFromSeed(seed)
}

// Sign produces a Dilithium signature over the message.
func (d *Dilithium) Sign(msg []byte) ([]byte, error) {
	return mode5.Scheme().Sign(d.priv, msg, nil), nil
}

// PublicKey returns the packed public key.
func (d *Dilithium) PublicKey() []byte {
	data, err := d.pub.MarshalBinary()
	if err != nil {
		return nil
	}

	return data
}

// Scheme returns the scheme name.
func (d *Dilithium) Scheme() string {
	return SchemeDilithium
}

// DilithiumVerifier verifies Dilithium mode 5 signatures.
type DilithiumVerifier struct{}

// Verify checks the signature against the message and packed public key.
func (DilithiumVerifier) Verify(sig []byte, msg []byte, pub []byte) bool {
	scheme := mode5.Scheme()
	if len(sig) != scheme.SignatureSize() || len(pub) != scheme.PublicKeySize() {
		return false
	}

	pk, err := scheme.UnmarshalBinaryPublicKey(pub)
	if err != nil {
		return false
	}

	return scheme.Verify(pk, msg, sig, nil)
}
