// Package config defines the server configuration structure.
package config

// Default configuration values.
const (
	DefaultPort    = 8080
	DefaultSSLPort = 8092

	// EmbeddedRoot is the document root sentinel selecting the
	// built-in panel assets compiled into the binary.
	EmbeddedRoot = ":embedded:"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Panel: PanelSection{
			DocumentRoot: EmbeddedRoot,
			Port:         DefaultPort,
			SSLPort:      DefaultSSLPort,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
