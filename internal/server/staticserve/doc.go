// Package staticserve serves the panel's static assets.
//
// The document root can be swapped at runtime without restarting the
// listeners. A built-in set of assets is compiled into the binary and
// used when no external root is configured or the configured one is
// missing.
package staticserve
