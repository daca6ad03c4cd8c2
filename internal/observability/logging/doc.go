// Package logging provides structured logging utilities with context propagation.
//
// Key features:
//   - JSON output for services, tint text output for terminals
//   - Request ID and correlation ID propagation
//   - Context-aware logging
//   - LOG_LEVEL / LOG_FORMAT environment configuration
//
// Example usage:
//
//	func main() {
//	    slog.SetDefault(logging.New())
//	}
//
//	func enrich(ctx context.Context, req entity.EnrichmentRequest) {
//	    ctx = logging.WithCorrelationID(ctx, req.CorrelationID)
//	    logging.ForRecord(ctx, req.RecordID).Info("enrichment started")
//	}
package logging
