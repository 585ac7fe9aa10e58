// Package config defines the server configuration structure.
package config

// ServerConfig is the root configuration for webpanel-server.
type ServerConfig struct {
	Panel PanelSection `koanf:"panel"`
	Log   LogSection   `koanf:"log"`
}

// PanelSection configures the web panel listeners.
type PanelSection struct {
	// DocumentRoot is the directory served by the listeners.
	// The sentinel EmbeddedRoot selects the built-in panel assets.
	DocumentRoot string `koanf:"document_root"`

	// Port is the plain HTTP listener port.
	Port int `koanf:"port"`

	// SSLPort is the HTTPS listener port.
	SSLPort int `koanf:"ssl_port"`

	// KeyPath is the PEM private key file for the HTTPS listener.
	// Empty selects the built-in self-signed identity.
	KeyPath string `koanf:"key_path"`

	// CrtPath is the PEM certificate file for the HTTPS listener.
	// Empty selects the built-in self-signed identity.
	CrtPath string `koanf:"crt_path"`

	// KeyPassphrase decrypts KeyPath when the key is encrypted.
	KeyPassphrase string `koanf:"key_passphrase"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Instance names the two listener instances a server runs.
type Instance string

const (
	// InstanceHTTP is the plain HTTP listener.
	InstanceHTTP Instance = "http"

	// InstanceHTTPS is the TLS listener.
	InstanceHTTPS Instance = "https"
)

// Snapshot is the per-listener view of the panel configuration.
// The reconciler consumes snapshots, never the raw ServerConfig.
type Snapshot struct {
	Instance      Instance
	DocumentRoot  string
	Port          int
	UseTLS        bool
	KeyPath       string
	CrtPath       string
	KeyPassphrase string
}

// SnapshotFor derives the listener snapshot for the given instance.
func (p PanelSection) SnapshotFor(inst Instance) Snapshot {
	s := Snapshot{
		Instance:     inst,
		DocumentRoot: p.DocumentRoot,
	}
	switch inst {
	case InstanceHTTPS:
		s.Port = p.SSLPort
		s.UseTLS = true
		s.KeyPath = p.KeyPath
		s.CrtPath = p.CrtPath
		s.KeyPassphrase = p.KeyPassphrase
	default:
		s.Port = p.Port
	}
	return s
}

// Equal reports whether two snapshots describe the same desired state.
func (s Snapshot) Equal(o Snapshot) bool {
	return s == o
}
