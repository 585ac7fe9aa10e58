// Package reconcile drives a listener toward a configuration snapshot.
//
// Apply is the sole entry point. Each call compares the desired
// snapshot against the live listener, restarts it only when the port
// changed or it is not running, negotiates a free port, loads and
// installs TLS material, resolves the document root, and publishes the
// outcome to registered observers.
//
// Applies for one listener are serialized; a call that arrives while
// another is in flight fails with ErrBusy rather than queueing, since
// overlapping stop/start pairs can race on the same socket.
package reconcile
