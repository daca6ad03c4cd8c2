package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/observability/logging"
	"track-enricher/internal/observability/metrics"
	"track-enricher/internal/observability/tracing"
	"track-enricher/internal/resilience/retry"
)

// Adapter gates a Source: enabled check, then a rate limit token, then the
// circuit breaker, then the retry loop around the source call. Every retry
// takes another token, so retries never exceed the budget.
type Adapter struct {
	source Source
	state  *State
}

// NewAdapter binds source to its shared provider state.
func NewAdapter(source Source, state *State) *Adapter {
	return &Adapter{source: source, state: state}
}

// Name returns the provider name.
func (a *Adapter) Name() string { return a.state.name }

// State returns the shared provider state.
func (a *Adapter) State() *State { return a.state }

// Lookup calls the source through the resilience gates.
//
// A source with no match yields (nil, nil). Any failure is a *LookupError
// carrying the error classification and the number of source calls made.
func (a *Adapter) Lookup(ctx context.Context, q Query) ([]entity.FieldResult, error) {
	results, _, err := a.LookupCounted(ctx, q)
	return results, err
}

// LookupCounted is Lookup that also reports how many times the source was
// invoked, retries included.
func (a *Adapter) LookupCounted(ctx context.Context, q Query) ([]entity.FieldResult, int, error) {
	ctx, span := tracing.StartSpan(ctx, "provider.Lookup", attribute.String("provider", a.Name()))
	start := time.Now()

	results, calls, err := a.lookup(ctx, q)

	outcome := metrics.OutcomeOK
	var lerr *LookupError
	switch {
	case errors.As(err, &lerr):
		outcome = string(lerr.Class)
		span.SetAttributes(attribute.String("class", outcome), attribute.Int("calls", lerr.Calls))
	case len(results) == 0:
		outcome = metrics.OutcomeNoMatch
	}
	metrics.RecordProviderLookup(a.Name(), outcome, time.Since(start))
	metrics.SetLimiterTokens(a.Name(), a.state.limiter.Utilization().Available)
	tracing.EndSpan(span, err)

	return results, calls, err
}

func (a *Adapter) lookup(ctx context.Context, q Query) ([]entity.FieldResult, int, error) {
	name := a.Name()
	if !a.state.Enabled() {
		return nil, 0, &LookupError{Provider: name, Class: entity.ClassProviderDisabled, Err: entity.ErrProviderDisabled}
	}

	if err := a.acquire(ctx); err != nil {
		return nil, 0, &LookupError{Provider: name, Class: retry.Classify(err), Err: err}
	}

	var (
		calls   int
		results []entity.FieldResult
	)

	policy := a.state.Policy()
	policy.BeforeRetry = a.acquire
	policy.OnRetry = func(s retry.CallState) {
		metrics.RecordProviderRetry(name, s.LastClass)
		logging.FromContext(ctx).Debug("retrying provider call",
			slog.String("provider", name),
			slog.Int("attempt", s.Attempt),
			slog.String("class", string(s.LastClass)),
			slog.Duration("delay", s.NextDelay))
	}

	err := a.state.breaker.Call(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, policy, func(ctx context.Context) error {
			calls++
			r, err := a.source.Lookup(ctx, q)
			if err != nil {
				return err
			}
			results = r
			return nil
		})
	})
	if err != nil {
		return nil, calls, &LookupError{Provider: name, Class: classOf(ctx, err), Calls: calls, Err: err}
	}

	return stamp(name, results), calls, nil
}

func (a *Adapter) acquire(ctx context.Context) error {
	start := time.Now()
	err := a.state.limiter.Acquire(ctx)
	metrics.RecordLimiterWait(a.Name(), time.Since(start))
	return err
}

// classOf prefers deadline_exceeded once the caller's context is done, so a
// lookup cut short by the record deadline is never reported as a provider fault.
func classOf(ctx context.Context, err error) entity.ErrorClass {
	if ctx.Err() != nil {
		return entity.ClassDeadlineExceeded
	}
	return retry.Classify(err)
}

// stamp sets provenance and drops results that fail validation.
func stamp(name string, results []entity.FieldResult) []entity.FieldResult {
	out := make([]entity.FieldResult, 0, len(results))
	now := time.Now()
	for _, r := range results {
		r.Provider = name
		if r.ObservedAt.IsZero() {
			r.ObservedAt = now
		}
		if err := r.Validate(); err != nil {
			slog.Warn("dropping invalid field result",
				slog.String("provider", name),
				slog.String("field", r.Field),
				slog.Any("error", err))
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
