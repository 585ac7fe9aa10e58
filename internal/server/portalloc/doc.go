// Package portalloc negotiates TCP listen ports for webpanel listeners.
//
// A configured port may be taken by another process. Rather than fail,
// the allocator probes upward from the requested port until it finds a
// free one, and reports whether an adjustment happened so the caller
// can persist and announce the effective port.
package portalloc
