// Package cmap provides a concurrent-safe sharded map.
//
// webpanel uses it for per-client request state (rate limiter buckets
// keyed by client IP), where many handler goroutines read and write
// concurrently. Sharding keeps lock contention low without the
// allocation overhead of sync.Map for this access pattern.
//
// Usage:
//
//	m := cmap.New[string, *rate.Limiter]()
//	lim, _ := m.GetOrSet(ip, rate.NewLimiter(10, 20))
//
// All operations are safe for concurrent use. Reads take a per-shard
// RLock, writes a per-shard Lock.
package cmap
