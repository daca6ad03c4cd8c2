package metrics

import (
	"time"

	"track-enricher/internal/domain/entity"
)

// Lookup outcomes that are not error classifications.
const (
	OutcomeOK      = "ok"
	OutcomeNoMatch = "no_match"
)

// RecordProviderLookup records one gated lookup and its duration.
func RecordProviderLookup(provider, outcome string, duration time.Duration) {
	ProviderLookupsTotal.WithLabelValues(provider, outcome).Inc()
	ProviderLookupDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordProviderRetry records a scheduled retry.
func RecordProviderRetry(provider string, class entity.ErrorClass) {
	ProviderRetriesTotal.WithLabelValues(provider, string(class)).Inc()
}

// SetBreakerState records the current breaker state of provider.
func SetBreakerState(provider string, state entity.BreakerState) {
	var v float64
	switch state {
	case entity.BreakerHalfOpen:
		v = 1
	case entity.BreakerOpen:
		v = 2
	}
	BreakerState.WithLabelValues(provider).Set(v)
}

// RecordBreakerTransition records a transition and updates the state gauge.
func RecordBreakerTransition(provider string, to entity.BreakerState) {
	BreakerTransitionsTotal.WithLabelValues(provider, string(to)).Inc()
	SetBreakerState(provider, to)
}

// RecordLimiterWait records the time a caller waited for a token.
func RecordLimiterWait(provider string, wait time.Duration) {
	LimiterWaitDuration.WithLabelValues(provider).Observe(wait.Seconds())
}

// SetLimiterTokens records the tokens available for provider.
func SetLimiterTokens(provider string, tokens float64) {
	LimiterAvailableTokens.WithLabelValues(provider).Set(tokens)
}

// RecordEnrichment records a finished record.
func RecordEnrichment(status entity.RecordStatus, duration time.Duration) {
	RecordsTotal.WithLabelValues(string(status)).Inc()
	RecordDuration.Observe(duration.Seconds())
}

// RecordFieldOutcome records how a field waterfall ended. provider is empty
// unless the field was resolved.
func RecordFieldOutcome(field, outcome, provider string) {
	FieldsTotal.WithLabelValues(field, outcome, provider).Inc()
}

// RecordDeadLetterEnqueued records a captured message.
func RecordDeadLetterEnqueued(class entity.ErrorClass) {
	DeadLettersEnqueuedTotal.WithLabelValues(string(class)).Inc()
}

// RecordDeadLetterReplay records a replay result.
func RecordDeadLetterReplay(result string) {
	DeadLetterReplaysTotal.WithLabelValues(result).Inc()
}

// RecordDeadLetterDeleted records an operator deletion.
func RecordDeadLetterDeleted() {
	DeadLettersDeletedTotal.Inc()
}

// SetDeadLetterDepth records the number of stored messages.
func SetDeadLetterDepth(n int64) {
	DeadLetterDepth.Set(float64(n))
}
