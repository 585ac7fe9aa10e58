package tlsmaterial

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// embeddedValidity is the lifetime of the generated fallback identity.
const embeddedValidity = 10 * 365 * 24 * time.Hour

var (
	embeddedOnce sync.Once
	embeddedCert *tls.Certificate
	embeddedErr  error
)

// Embedded returns the built-in self-signed identity, generating it on
// first use. The same certificate is returned for the process lifetime.
func Embedded() (*tls.Certificate, error) {
	embeddedOnce.Do(func() {
		embeddedCert, embeddedErr = generateSelfSigned()
	})
	return embeddedCert, embeddedErr
}

func generateSelfSigned() (*tls.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("tlsmaterial: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("tlsmaterial: generate serial: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   "WebPanel",
			Organization: []string{"WebPanel"},
		},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(embeddedValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("tlsmaterial: create certificate: %w", err)
	}

	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("tlsmaterial: parse generated certificate: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}
