// Package observability groups the logging, metrics, tracing and SLO
// infrastructure of the enrichment services.
//
// Subpackages:
//   - logging: structured logging with slog and tint
//   - metrics: Prometheus metrics registry and recorders
//   - tracing: OpenTelemetry spans for requests, records and lookups
//   - slo: completion ratio and dead-letter backlog objectives
package observability
