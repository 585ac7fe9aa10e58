// Package metric provides Prometheus metrics for webpanel.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: metric registry and HTTP handler
//
// Metrics include:
//
//   - Listener state gauges and restart counters per instance
//   - Port negotiation adjustments
//   - TLS material load outcomes and certificate expiry
//   - Request counters and latency histograms
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
