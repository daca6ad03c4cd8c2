// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count)
//   - Provider metrics (lookups, retries, breaker state, limiter tokens)
//   - Pipeline metrics (records, fields)
//   - Dead-letter metrics (enqueued, replayed, deleted, depth)
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	start := time.Now()
//	results, err := adapter.Lookup(ctx, q)
//	metrics.RecordProviderLookup("spotify", metrics.OutcomeOK, time.Since(start))
package metrics
