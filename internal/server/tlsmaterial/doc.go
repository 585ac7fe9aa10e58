// Package tlsmaterial manages the TLS identity of the HTTPS listener.
//
// It handles loading certificate chains and private keys from PEM
// files, filtering out expired certificates, decrypting passphrase
// protected keys, and swapping the served identity at runtime without
// restarting the listener.
//
// When no usable identity exists the listener stays up but rejects
// handshakes; installing a fresh identity later recovers it without a
// restart.
package tlsmaterial
