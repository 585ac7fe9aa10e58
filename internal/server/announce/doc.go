// Package announce publishes the panel's effective endpoint.
//
// Only the plain HTTP instance is announced; encrypted endpoints are
// deliberately left out of discovery. The announcement carries the
// effective port, which may differ from the configured one after port
// negotiation.
package announce
