package signature

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"
)

// stampPrefix makes it clear a signature was produced for this chain.
// Ethereum and Bitcoin prefix their signed messages as well.
const stampPrefix = "\x19AuriumChain Signed Message:\n32"

// ECDSA signs with a secp256k1 private key.
type ECDSA struct {
	key *ecdsa.PrivateKey
}

// NewECDSA constructs a signer around an existing private key.
func NewECDSA(key *ecdsa.PrivateKey) *ECDSA {
	return &ECDSA{key: key}
}

// GenerateECDSA constructs a signer around a new random private key.
func GenerateECDSA() (*ECDSA, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	return &ECDSA{key: key}, nil
}

// LoadECDSA reads a hex encoded private key from the file.
func LoadECDSA(path string) (*ECDSA, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, err
	}

	return &ECDSA{key: key}, nil
}

// Save writes the private key hex encoded to the file.
func (e *ECDSA) Save(path string) error {
	return crypto.SaveECDSA(path, e.key)
}

// Sign produces a 65 byte [R || S || V] signature over the stamped message.
func (e *ECDSA) Sign(msg []byte) ([]byte, error) {
	return crypto.Sign(stamp(msg), e.key)
}

// PublicKey returns the uncompressed public key.
func (e *ECDSA) PublicKey() []byte {
	return crypto.FromECDSAPub(&e.key.PublicKey)
}

// Scheme returns the scheme name.
func (e *ECDSA) Scheme() string {
	return SchemeECDSA
}

// ECDSAVerifier verifies secp256k1 signatures.
type ECDSAVerifier struct{}

// Verify checks the signature against the stamped message.
func (ECDSAVerifier) Verify(sig []byte, msg []byte, pub []byte) bool {
	if len(sig) != crypto.SignatureLength && len(sig) != crypto.RecoveryIDOffset {
		return false
	}

	return crypto.VerifySignature(pub, stamp(msg), sig[:crypto.RecoveryIDOffset])
}

// stamp returns a 32 byte digest of the message with the chain stamp
// embedded into the final hash.
func stamp(msg []byte) []byte {
	return crypto.Keccak256([]byte(stampPrefix), crypto.Keccak256(msg))
}
