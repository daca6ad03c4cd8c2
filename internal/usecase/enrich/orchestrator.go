// Package enrich runs the field waterfall for one track record.
//
// Every requested field walks its configured provider list in order until a
// result meets the field's confidence threshold. Fields run concurrently;
// providers within a field never do. A record whose required field cannot be
// satisfied, or whose deadline passes first, is failed and handed to the
// dead-letter sink.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"track-enricher/internal/config"
	"track-enricher/internal/domain/entity"
	"track-enricher/internal/observability/logging"
	"track-enricher/internal/observability/metrics"
	"track-enricher/internal/observability/slo"
	"track-enricher/internal/observability/tracing"
	"track-enricher/internal/provider"
	"track-enricher/internal/resilience/retry"
)

// Field outcomes reported to metrics.
const (
	fieldAccepted     = "accepted"
	fieldSkipped      = "skipped"
	fieldUnavailable  = "unavailable"
	fieldInterrupted  = "interrupted"
	fieldUnconfigured = "unconfigured"
)

// Adapters resolves a provider name to its gated adapter.
type Adapters interface {
	Adapter(name string) (*provider.Adapter, bool)
}

// PipelineSource returns the live pipeline configuration.
type PipelineSource interface {
	Current() *config.Pipeline
}

// DeadLetterSink persists failed records.
type DeadLetterSink interface {
	Enqueue(ctx context.Context, msg *entity.DeadLetterMessage) error
}

// Orchestrator enriches records through the provider waterfall.
type Orchestrator struct {
	adapters Adapters
	pipeline PipelineSource
	sink     DeadLetterSink
	tracker  *slo.Tracker
	now      func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithDeadLetterSink sets where failed records go. Without a sink failed
// records are only logged.
func WithDeadLetterSink(sink DeadLetterSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithTracker feeds record outcomes into an SLO tracker.
func WithTracker(t *slo.Tracker) Option {
	return func(o *Orchestrator) { o.tracker = t }
}

// WithClock replaces time.Now for attempt and record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
func New(adapters Adapters, pipeline PipelineSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		adapters: adapters,
		pipeline: pipeline,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Enrich runs the waterfall for req and dead-letters the record if it fails.
//
// The returned record is always complete or failed. An error is returned only
// when the request has no record id or when a failed record could not be
// persisted; provider trouble never surfaces as an error.
func (o *Orchestrator) Enrich(ctx context.Context, req entity.EnrichmentRequest) (*entity.EnrichmentRecord, error) {
	if req.RecordID == "" {
		return nil, ErrMissingRecordID
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	ctx = logging.WithCorrelationID(ctx, req.CorrelationID)

	start := time.Now()
	rec := entity.NewRecord(req)
	o.Run(ctx, req, rec)

	status := rec.CurrentStatus()
	metrics.RecordEnrichment(status, time.Since(start))
	if o.tracker != nil {
		o.tracker.Observe(status == entity.StatusComplete)
	}
	if status != entity.StatusFailed {
		return rec, nil
	}

	if err := o.deadLetter(ctx, req, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func (o *Orchestrator) deadLetter(ctx context.Context, req entity.EnrichmentRequest, rec *entity.EnrichmentRecord) error {
	msg := entity.NewDeadLetterMessage(req, rec, o.now())
	log := logging.ForRecord(ctx, req.RecordID)
	log.Error("record enrichment failed",
		slog.String("classification", string(msg.Class)),
		slog.String("field", msg.Field),
		slog.String("provider", msg.Provider),
		slog.String("error", msg.Error))

	if o.sink == nil {
		return nil
	}
	// the record deadline may already be spent; persisting must still happen
	if err := o.sink.Enqueue(context.WithoutCancel(ctx), msg); err != nil {
		log.Error("failed to dead-letter record", slog.Any("error", err))
		return fmt.Errorf("%w: record %s: %w", ErrDeadLetterFailed, req.RecordID, err)
	}
	return nil
}

// fieldState is what one field goroutine learned.
type fieldState struct {
	required    bool
	satisfied   bool
	interrupted bool
}

// Run executes the waterfall for req into rec without dead-lettering.
// Fields already merged into rec are kept, so a replay can only improve them.
func (o *Orchestrator) Run(ctx context.Context, req entity.EnrichmentRequest, rec *entity.EnrichmentRecord) {
	rec.Begin(o.now())

	if err := req.Validate(); err != nil {
		rec.Fail(entity.Failure{Class: entity.ClassOf(err), Message: err.Error()}, o.now())
		return
	}

	p := o.pipeline.Current()
	deadline := p.Deadline.Std()
	if deadline <= 0 {
		deadline = config.DefaultDeadline
	}
	parallelism := p.FieldParallelism
	if parallelism < 1 {
		parallelism = len(req.Fields)
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "enrich.Record",
		attribute.String("record_id", req.RecordID),
		attribute.StringSlice("fields", req.Fields))
	defer span.End()

	var (
		mu     sync.Mutex
		states = make(map[string]fieldState, len(req.Fields))
		cache  = newLookupCache()
		q      = provider.QueryOf(req)
	)

	var g errgroup.Group
	g.SetLimit(parallelism)
	for _, field := range req.Fields {
		g.Go(func() error {
			st := o.enrichField(ctx, req, rec, field, q, cache)
			mu.Lock()
			states[field] = st
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	o.finish(ctx, req, rec, states)
	span.SetAttributes(attribute.String("status", string(rec.CurrentStatus())))
}

func (o *Orchestrator) enrichField(ctx context.Context, req entity.EnrichmentRequest, rec *entity.EnrichmentRecord, field string, q provider.Query, cache *lookupCache) fieldState {
	ctx, span := tracing.StartSpan(ctx, "enrich.Field", attribute.String("field", field))
	defer span.End()
	log := logging.ForRecord(ctx, req.RecordID).With(slog.String("field", field))

	// read per field so a reload applies to the next field lookup
	fc, ok := o.pipeline.Current().Field(field)
	if !ok {
		log.Warn("field has no provider waterfall configured")
		rec.MarkUnavailable(field)
		metrics.RecordFieldOutcome(field, fieldUnconfigured, "")
		return fieldState{}
	}
	st := fieldState{required: fc.Required}

	if !req.Refresh {
		if current, ok := rec.Result(field); ok && current.Confidence >= fc.Threshold {
			metrics.RecordFieldOutcome(field, fieldSkipped, current.Provider)
			st.satisfied = true
			return st
		}
	}

	for _, name := range fc.Providers {
		if ctx.Err() != nil {
			st.interrupted = true
			break
		}

		attempt, result, accepted := o.tryProvider(ctx, field, name, fc.Threshold, q, cache)
		rec.RecordAttempt(attempt)
		if attempt.Failed() {
			log.Warn("provider lookup failed",
				slog.String("provider", name),
				slog.String("class", string(attempt.Class)),
				slog.Int("calls", attempt.Calls),
				slog.String("error", attempt.Error))
			if attempt.Class == entity.ClassDeadlineExceeded && ctx.Err() != nil {
				st.interrupted = true
				break
			}
			continue
		}
		if accepted {
			rec.Apply(result, req.Refresh)
			metrics.RecordFieldOutcome(field, fieldAccepted, name)
			st.satisfied = true
			return st
		}
		log.Debug("provider result not used",
			slog.String("provider", name),
			slog.String("outcome", string(attempt.Outcome)),
			slog.Float64("confidence", attempt.Confidence))
	}

	// a lower-confidence value from an earlier pass still counts
	if current, ok := rec.Result(field); ok && current.Confidence >= fc.Threshold {
		st.satisfied = true
		return st
	}

	rec.MarkUnavailable(field)
	if st.interrupted {
		metrics.RecordFieldOutcome(field, fieldInterrupted, "")
	} else {
		metrics.RecordFieldOutcome(field, fieldUnavailable, "")
	}
	return st
}

// tryProvider performs one (field, provider) step of the waterfall.
func (o *Orchestrator) tryProvider(ctx context.Context, field, name string, threshold float64, q provider.Query, cache *lookupCache) (entity.Attempt, entity.FieldResult, bool) {
	attempt := entity.Attempt{Field: field, Provider: name}

	adapter, ok := o.adapters.Adapter(name)
	if !ok {
		attempt.At = o.now()
		attempt.Outcome = entity.OutcomeError
		attempt.Class = entity.ClassProviderDisabled
		attempt.Error = "no adapter registered for provider"
		return attempt, entity.FieldResult{}, false
	}

	results, calls, shared, err := cache.lookup(ctx, adapter, q)
	attempt.At = o.now()
	if !shared {
		attempt.Calls = calls
	}
	if err != nil {
		attempt.Outcome = entity.OutcomeError
		attempt.Class = retry.Classify(err)
		attempt.Error = err.Error()
		return attempt, entity.FieldResult{}, false
	}

	best, found := pick(results, field)
	switch {
	case !found:
		attempt.Outcome = entity.OutcomeNoMatch
		return attempt, entity.FieldResult{}, false
	case best.Confidence < threshold:
		attempt.Outcome = entity.OutcomeBelowThreshold
		attempt.Confidence = best.Confidence
		return attempt, entity.FieldResult{}, false
	default:
		attempt.Outcome = entity.OutcomeAccepted
		attempt.Confidence = best.Confidence
		return attempt, best, true
	}
}

// pick returns the most confident result for field.
func pick(results []entity.FieldResult, field string) (entity.FieldResult, bool) {
	var (
		best  entity.FieldResult
		found bool
	)
	for _, r := range results {
		if r.Field != field {
			continue
		}
		if !found || r.Confidence > best.Confidence {
			best, found = r, true
		}
	}
	return best, found
}

// finish settles the record status once every field has returned.
func (o *Orchestrator) finish(ctx context.Context, req entity.EnrichmentRequest, rec *entity.EnrichmentRecord, states map[string]fieldState) {
	now := o.now()

	var interrupted, missing []string
	for _, field := range req.Fields {
		st := states[field]
		if st.interrupted {
			interrupted = append(interrupted, field)
		}
		if st.required && !st.satisfied {
			missing = append(missing, field)
		}
	}
	sort.Strings(interrupted)
	sort.Strings(missing)

	if len(interrupted) > 0 {
		for _, field := range interrupted {
			rec.MarkUnavailable(field)
		}
		if len(rec.Snapshot().Attempts) == 0 {
			rec.RecordAttempt(entity.Attempt{
				Field:   interrupted[0],
				Outcome: entity.OutcomeError,
				Class:   entity.ClassDeadlineExceeded,
				Error:   context.DeadlineExceeded.Error(),
				At:      now,
			})
		}
		f := entity.Failure{
			Class:   entity.ClassDeadlineExceeded,
			Field:   interrupted[0],
			Message: fmt.Sprintf("record deadline exceeded before fields %v completed", interrupted),
		}
		if attempts := rec.FieldAttempts(interrupted[0]); len(attempts) > 0 {
			f.Provider = attempts[len(attempts)-1].Provider
		}
		if cause := ctx.Err(); cause != nil {
			f.Message += ": " + cause.Error()
		}
		rec.Fail(f, now)
		return
	}

	if len(missing) > 0 {
		rec.Fail(blame(rec, missing[0]), now)
		return
	}
	rec.Complete(now)
}

// blame attributes a missing required field to its last failed provider.
func blame(rec *entity.EnrichmentRecord, field string) entity.Failure {
	attempts := rec.FieldAttempts(field)
	for i := len(attempts) - 1; i >= 0; i-- {
		a := attempts[i]
		if a.Failed() {
			return entity.Failure{
				Class:    a.Class,
				Field:    field,
				Provider: a.Provider,
				Message:  fmt.Sprintf("required field %q unavailable: %s", field, a.Error),
			}
		}
	}

	f := entity.Failure{
		Class:   entity.ClassFieldUnavailable,
		Field:   field,
		Message: fmt.Sprintf("required field %q unavailable: no provider met the confidence threshold", field),
	}
	if n := len(attempts); n > 0 {
		f.Provider = attempts[n-1].Provider
	}
	return f
}
