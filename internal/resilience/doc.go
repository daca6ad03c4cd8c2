// Package resilience groups the reliability patterns that gate every
// provider call of the enrichment pipeline.
//
// The subpackages compose in a fixed order around one catalog lookup:
//   - ratelimit: per-provider token bucket, acquired before anything else
//   - circuitbreaker: per-provider closed/open/half_open state machine
//   - retry: error classification and bounded exponential backoff, innermost
//
// Usage Example:
//
//	if err := limiter.Acquire(ctx); err != nil {
//	    return err
//	}
//	err := breaker.Call(ctx, func(ctx context.Context) error {
//	    return retry.Do(ctx, retry.DefaultPolicy(), lookup)
//	})
package resilience
