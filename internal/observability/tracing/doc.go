// Package tracing provides OpenTelemetry tracing integration.
//
// Spans are created for HTTP requests, record enrichments, field waterfalls
// and provider lookups. Without InitTracer the global no-op provider is used.
//
// Example usage:
//
//	shutdown := tracing.InitTracer(0.1)
//	defer shutdown(context.Background())
//
//	ctx, span := tracing.StartSpan(ctx, "enrich.record")
//	defer tracing.EndSpan(span, err)
package tracing
