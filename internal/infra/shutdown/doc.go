// Package shutdown provides graceful shutdown for webpanel.
//
// This package handles process lifecycle signals:
//
//   - Signal handling (SIGINT, SIGTERM)
//   - Timeout-based forced shutdown
//   - Cleanup callback registration
//   - Runtime reload on SIGHUP
//
// Usage:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown(func(ctx context.Context) error { return srv.Stop(ctx) })
//	err := h.Wait()
package shutdown
