package tlsmaterial

import (
	"crypto/tls"
	"errors"
	"sync/atomic"
)

// ErrNoIdentity is returned to handshakes while no usable identity is
// installed. The listener keeps accepting connections; each handshake
// fails with this error until an identity arrives.
var ErrNoIdentity = errors.New("tlsmaterial: no usable identity installed")

// Identity holds the certificate served by the HTTPS listener.
//
// The certificate is swapped atomically so in-flight handshakes keep
// the identity they started with while new handshakes pick up the
// replacement.
type Identity struct {
	cert atomic.Pointer[tls.Certificate]
}

// NewIdentity creates an empty identity. Install must be called before
// handshakes can succeed.
func NewIdentity() *Identity {
	return &Identity{}
}

// Install atomically replaces the served certificate.
func (i *Identity) Install(cert *tls.Certificate) {
	i.cert.Store(cert)
}

// Clear removes the served certificate, degrading the listener to
// handshake rejection.
func (i *Identity) Clear() {
	i.cert.Store(nil)
}

// Usable reports whether an identity is installed.
func (i *Identity) Usable() bool {
	return i.cert.Load() != nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (i *Identity) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cert := i.cert.Load()
	if cert == nil {
		return nil, ErrNoIdentity
	}
	return cert, nil
}

// TLSConfig returns a server tls.Config backed by this identity.
func (i *Identity) TLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: i.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}
