package p2p

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// NetworkName is the server name every node certificate carries. Clients
// verify against it so nodes can be dialed by any address.
const NetworkName = "auriumchain-node"

// Set of file names used when credentials are stored in a directory.
const (
	caCertFile   = "ca.crt"
	caKeyFile    = "ca.key"
	nodeCertFile = "node.crt"
	nodeKeyFile  = "node.key"
)

// Authority is the network certificate authority, PEM encoded.
type Authority struct {
	Cert []byte
	Key  []byte
}

// Credentials are what a node needs to take part in mutual TLS, PEM encoded.
type Credentials struct {
	CACert []byte
	Cert   []byte
	Key    []byte
}

// GenerateAuthority creates a self signed network authority.
func GenerateAuthority(validFor time.Duration) (Authority, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Authority{}, fmt.Errorf("generate ca key: %w", err)
	}

	serial, err := serialNumber()
	if err != nil {
		return Authority{}, err
	}

	now := time.Now()
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: NetworkName + " ca"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return Authority{}, fmt.Errorf("create ca certificate: %w", err)
	}

	keyPEM, err := encodeKey(key)
	if err != nil {
		return Authority{}, err
	}

	ca := Authority{
		Cert: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		Key:  keyPEM,
	}

	return ca, nil
}

// Issue creates node credentials signed by the authority. The hosts are
// added to the certificate next to NetworkName.
func (a Authority) Issue(hosts []string, validFor time.Duration) (Credentials, error) {
	caPair, err := tls.X509KeyPair(a.Cert, a.Key)
	if err != nil {
		return Credentials{}, fmt.Errorf("parse ca: %w", err)
	}

	caCert, err := x509.ParseCertificate(caPair.Certificate[0])
	if err != nil {
		return Credentials{}, fmt.Errorf("parse ca certificate: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Credentials{}, fmt.Errorf("generate node key: %w", err)
	}

	serial, err := serialNumber()
	if err != nil {
		return Credentials{}, err
	}

	now := time.Now()
	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: NetworkName},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(validFor),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:     []string{NetworkName},
	}

	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
			continue
		}
		tmpl.DNSNames = append(tmpl.DNSNames, host)
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, caCert, &key.PublicKey, caPair.PrivateKey)
	if err != nil {
		return Credentials{}, fmt.Errorf("create node certificate: %w", err)
	}

	keyPEM, err := encodeKey(key)
	if err != nil {
		return Credentials{}, err
	}

	creds := Credentials{
		CACert: a.Cert,
		Cert:   pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		Key:    keyPEM,
	}

	return creds, nil
}

// GenerateCredentials creates a fresh authority and issues one set of node
// credentials from it.
func GenerateCredentials(hosts []string, validFor time.Duration) (Authority, Credentials, error) {
	ca, err := GenerateAuthority(validFor)
	if err != nil {
		return Authority{}, Credentials{}, err
	}

	creds, err := ca.Issue(hosts, validFor)
	if err != nil {
		return Authority{}, Credentials{}, err
	}

	return ca, creds, nil
}

// ServerConfig returns a TLS configuration that requires and verifies a
// client certificate issued by the network authority.
func (c Credentials) ServerConfig() (*tls.Config, error) {
	cert, pool, err := c.parse()
	if err != nil {
		return nil, err
	}

	cfg := tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}

	return &cfg, nil
}

// ClientConfig returns a TLS configuration that presents the node
// certificate and verifies the server against the network authority.
func (c Credentials) ClientConfig() (*tls.Config, error) {
	cert, pool, err := c.parse()
	if err != nil {
		return nil, err
	}

	cfg := tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		ServerName:   NetworkName,
		MinVersion:   tls.VersionTLS13,
	}

	return &cfg, nil
}

// Save writes the credentials into the directory.
func (c Credentials) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	files := []struct {
		name string
		data []byte
		perm os.FileMode
	}{
		{caCertFile, c.CACert, 0644},
		{nodeCertFile, c.Cert, 0644},
		{nodeKeyFile, c.Key, 0600},
	}

	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), f.data, f.perm); err != nil {
			return err
		}
	}

	return nil
}

// LoadCredentials reads credentials written by Save.
func LoadCredentials(dir string) (Credentials, error) {
	var c Credentials
	var err error

	if c.CACert, err = os.ReadFile(filepath.Join(dir, caCertFile)); err != nil {
		return Credentials{}, err
	}
	if c.Cert, err = os.ReadFile(filepath.Join(dir, nodeCertFile)); err != nil {
		return Credentials{}, err
	}
	if c.Key, err = os.ReadFile(filepath.Join(dir, nodeKeyFile)); err != nil {
		return Credentials{}, err
	}

	return c, nil
}

// Save writes the authority into the directory.
func (a Authority) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(dir, caCertFile), a.Cert, 0644); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, caKeyFile), a.Key, 0600)
}

// LoadAuthority reads an authority written by Save.
func LoadAuthority(dir string) (Authority, error) {
	var a Authority
	var err error

	if a.Cert, err = os.ReadFile(filepath.Join(dir, caCertFile)); err != nil {
		return Authority{}, err
	}
	if a.Key, err = os.ReadFile(filepath.Join(dir, caKeyFile)); err != nil {
		return Authority{}, err
	}

	return a, nil
}

// =============================================================================

func (c Credentials) parse() (tls.Certificate, *x509.CertPool, error) {
	cert, err := tls.X509KeyPair(c.Cert, c.Key)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("parse node certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(c.CACert) {
		return tls.Certificate{}, nil, errors.New("parse ca certificate: no certificates found")
	}

	return cert, pool, nil
}

func encodeKey(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}

func serialNumber() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)

	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}

	return serial, nil
}
