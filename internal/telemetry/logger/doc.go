// Package logger provides structured logging for webpanel.
//
// The package wraps log/slog:
//
//   - logger.go: logger construction and level handling
//   - context.go: context-aware logging with request IDs
//   - redact.go: sensitive data redaction
//
// Features:
//
//   - JSON and text output formats
//   - Dynamic log level adjustment
//   - Automatic masking of secrets (TLS key passphrases and the like)
//   - Context propagation for request correlation
package logger
