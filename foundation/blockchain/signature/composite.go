package signature

import "strings"

// Composite combines several independent signers. The signature blob and
// the public key are the length prefixed concatenation of the parts, in
// signer order.
type Composite struct {
	signers []Signer
}

// NewComposite constructs a composite signer.
func NewComposite(signers ...Signer) *Composite {
	return &Composite{signers: signers}
}

// Sign signs the message with every signer.
func (c *Composite) Sign(msg []byte) ([]byte, error) {
	sigs := make([][]byte, 0, len(c.signers))
	for _, s := range c.signers {
		sig, err := s.Sign(msg)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}

	return pack(sigs), nil
}

// PublicKey returns the packed public keys of every signer.
func (c *Composite) PublicKey() []byte {
	pubs := make([][]byte, 0, len(c.signers))
	for _, s := range c.signers {
		pubs = append(pubs, s.PublicKey())
	}

	return pack(pubs)
}

// Scheme returns the composite scheme name followed by the parts.
func (c *Composite) Scheme() string {
	names := make([]string, 0, len(c.signers))
	for _, s := range c.signers {
		names = append(names, s.Scheme())
	}

	return SchemeComposite + "(" + strings.Join(names, "+") + ")"
}

// CompositeVerifier requires every sub-signature to verify.
type CompositeVerifier struct {
	verifiers []Verifier
}

// NewCompositeVerifier constructs a composite verifier. The verifiers must
// be in the same order as the signers that produced the blob.
func NewCompositeVerifier(verifiers ...Verifier) CompositeVerifier {
	return CompositeVerifier{verifiers: verifiers}
}

// Verify splits the blob and public key and checks every part.
func (cv CompositeVerifier) Verify(sig []byte, msg []byte, pub []byte) bool {
	sigs, err := unpack(sig)
	if err != nil || len(sigs) != len(cv.verifiers) {
		return false
	}

	pubs, err := unpack(pub)
	if err != nil || len(pubs) != len(cv.verifiers) {
		return false
	}

	for i, v := range cv.verifiers {
		if !v.Verify(sigs[i], msg, pubs[i]) {
			return false
		}
	}

	return len(cv.verifiers) > 0
}
