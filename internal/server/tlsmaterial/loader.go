package tlsmaterial

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

var (
	// ErrNoCertsFound is returned when no certificates are found in a PEM file.
	ErrNoCertsFound = errors.New("tlsmaterial: no certificates found in PEM file")

	// ErrNoUsableCerts is returned when every certificate in the file is
	// expired or expires within a day.
	ErrNoUsableCerts = errors.New("tlsmaterial: no certificate with at least one day of validity")

	// ErrNoKeyFound is returned when no private key is found in a PEM file.
	ErrNoKeyFound = errors.New("tlsmaterial: no private key found in PEM file")

	// ErrKeyEncrypted is returned when the private key is encrypted and
	// no passphrase is configured.
	ErrKeyEncrypted = errors.New("tlsmaterial: private key is encrypted and no passphrase is configured")
)

// minValidity is the remaining lifetime a certificate needs to be
// served. Certificates expiring sooner are discarded at load time.
const minValidity = 24 * time.Hour

// Report describes the outcome of a material load.
type Report struct {
	// CertsFound is the number of certificates in the chain file.
	CertsFound int

	// CertsUsable is the number that passed the validity filter.
	CertsUsable int

	// CertsDiscarded is the number rejected as expired or near expiry.
	CertsDiscarded int

	// NotAfter is the earliest expiry among the usable certificates.
	NotAfter time.Time

	// Embedded reports whether the built-in identity was used.
	Embedded bool
}

// Load reads a certificate chain and private key from PEM files and
// returns a usable server identity.
//
// Certificates without at least one full day of remaining validity are
// discarded; if none survive, ErrNoUsableCerts is returned. Encrypted
// keys are decrypted with the passphrase.
//
// Empty paths select the built-in self-signed identity.
func Load(crtPath, keyPath, passphrase string) (*tls.Certificate, Report, error) {
	return loadAt(crtPath, keyPath, passphrase, time.Now())
}

func loadAt(crtPath, keyPath, passphrase string, now time.Time) (*tls.Certificate, Report, error) {
	if crtPath == "" && keyPath == "" {
		cert, err := Embedded()
		if err != nil {
			return nil, Report{Embedded: true}, err
		}
		report := Report{
			CertsFound:  1,
			CertsUsable: 1,
			NotAfter:    cert.Leaf.NotAfter,
			Embedded:    true,
		}
		return cert, report, nil
	}

	// Both halves are always read, so a certificate failure does not
	// mask a key diagnostic or the other way around.
	chainPEM, report, certErr := usableChain(crtPath, now)
	keyPEM, keyErr := readKey(keyPath, passphrase)
	if certErr != nil || keyErr != nil {
		return nil, report, errors.Join(certErr, keyErr)
	}

	cert, err := tls.X509KeyPair(chainPEM, keyPEM)
	if err != nil {
		return nil, report, fmt.Errorf("tlsmaterial: assemble key pair: %w", err)
	}

	// tls.X509KeyPair leaves Leaf unset; parse it for expiry reporting.
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		if leaf, perr := x509.ParseCertificate(cert.Certificate[0]); perr == nil {
			cert.Leaf = leaf
		}
	}

	return &cert, report, nil
}

// usableChain reads the certificate file and returns the PEM encoding
// of the certificates that pass the validity filter, preserving order.
func usableChain(path string, now time.Time) ([]byte, Report, error) {
	var report Report

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, report, fmt.Errorf("tlsmaterial: read cert file %s: %w", path, err)
	}

	var chain []byte
	rest := data
	for len(rest) > 0 {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, perr := x509.ParseCertificate(block.Bytes)
		if perr != nil {
			return nil, report, fmt.Errorf("tlsmaterial: parse certificate: %w", perr)
		}
		report.CertsFound++

		if !now.Add(minValidity).Before(cert.NotAfter) {
			report.CertsDiscarded++
			continue
		}

		report.CertsUsable++
		if report.NotAfter.IsZero() || cert.NotAfter.Before(report.NotAfter) {
			report.NotAfter = cert.NotAfter
		}
		chain = append(chain, pem.EncodeToMemory(block)...)
	}

	if report.CertsFound == 0 {
		return nil, report, ErrNoCertsFound
	}
	if report.CertsUsable == 0 {
		return nil, report, ErrNoUsableCerts
	}

	return chain, report, nil
}

// readKey reads a PEM private key, decrypting it when a passphrase is
// given. The result is always an unencrypted PEM block suitable for
// tls.X509KeyPair.
func readKey(path, passphrase string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlsmaterial: read key file %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrNoKeyFound
	}

	// A configured passphrase against a plain key is ignored.
	if !keyEncrypted(block) {
		return data, nil
	}

	if passphrase == "" {
		return nil, fmt.Errorf("%w: %s", ErrKeyEncrypted, path)
	}

	// ssh.ParseRawPrivateKeyWithPassphrase handles both legacy
	// DEK-Info encrypted PEM and OpenSSH format keys.
	key, err := ssh.ParseRawPrivateKeyWithPassphrase(data, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("tlsmaterial: decrypt key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("tlsmaterial: encode decrypted key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// keyEncrypted reports whether the PEM block holds an encrypted key.
func keyEncrypted(block *pem.Block) bool {
	if block.Type == "ENCRYPTED PRIVATE KEY" {
		return true
	}
	// Legacy PEM encryption marks the block with a Proc-Type header.
	if strings.Contains(block.Headers["Proc-Type"], "ENCRYPTED") {
		return true
	}
	// OpenSSH keys carry the cipher inside the blob; probing the parse
	// is the only way to tell.
	if block.Type == "OPENSSH PRIVATE KEY" {
		_, err := ssh.ParseRawPrivateKey(pem.EncodeToMemory(block))
		var missing *ssh.PassphraseMissingError
		return errors.As(err, &missing)
	}
	return false
}
