// Package config defines the webpanel server configuration structure.
//
// Configuration is organized in sections:
//
//   - panel: listener ports, TLS material paths, document root
//   - log: logging level and format
//
// Each section maps to a YAML block in the configuration file and to
// WEBPANEL_-prefixed environment variables via confloader.
//
// The package also defines the Snapshot type, the per-listener view of
// the configuration that the reconciler consumes.
package config
