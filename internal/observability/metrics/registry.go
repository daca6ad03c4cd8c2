// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Provider metrics track every gated catalog lookup
var (
	// ProviderLookupsTotal counts lookups by provider and outcome
	// (ok, no_match or an error classification)
	ProviderLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_provider_lookups_total",
			Help: "Total number of provider lookups by outcome",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderLookupDuration measures lookup latency including retries
	ProviderLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enricher_provider_lookup_duration_seconds",
			Help:    "Provider lookup duration in seconds, retries included",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"provider"},
	)

	// ProviderRetriesTotal counts scheduled retries by provider and error class
	ProviderRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_provider_retries_total",
			Help: "Total number of provider call retries",
		},
		[]string{"provider", "class"},
	)

	// BreakerState is 0 closed, 1 half_open, 2 open
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "enricher_breaker_state",
			Help: "Circuit breaker state per provider (0 closed, 1 half_open, 2 open)",
		},
		[]string{"provider"},
	)

	// BreakerTransitionsTotal counts breaker transitions by target state
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"provider", "to"},
	)

	// LimiterWaitDuration measures time spent waiting for a rate limit token
	LimiterWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enricher_limiter_wait_seconds",
			Help:    "Time spent waiting for a rate limit token",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"provider"},
	)

	// LimiterAvailableTokens tracks the tokens left in each provider bucket
	LimiterAvailableTokens = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "enricher_limiter_available_tokens",
			Help: "Rate limit tokens currently available per provider",
		},
		[]string{"provider"},
	)
)

// Pipeline metrics track records and fields
var (
	// RecordsTotal counts finished records by status
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_records_total",
			Help: "Total number of enriched records by final status",
		},
		[]string{"status"},
	)

	// RecordDuration measures the time to enrich one record
	RecordDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enricher_record_duration_seconds",
			Help:    "Time taken to enrich one record",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	// FieldsTotal counts field outcomes (resolved, unavailable, skipped)
	FieldsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_fields_total",
			Help: "Total number of field waterfalls by outcome",
		},
		[]string{"field", "outcome", "provider"},
	)
)

// Dead-letter metrics
var (
	// DeadLettersEnqueuedTotal counts messages captured by classification
	DeadLettersEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_deadletters_enqueued_total",
			Help: "Total number of dead-letter messages enqueued",
		},
		[]string{"class"},
	)

	// DeadLetterReplaysTotal counts replays by result (recovered, failed, error)
	DeadLetterReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_deadletter_replays_total",
			Help: "Total number of dead-letter replays by result",
		},
		[]string{"result"},
	)

	// DeadLettersDeletedTotal counts explicit deletions
	DeadLettersDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enricher_deadletters_deleted_total",
			Help: "Total number of dead-letter messages deleted by operators",
		},
	)

	// DeadLetterDepth tracks the number of messages in the store
	DeadLetterDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enricher_deadletter_depth",
			Help: "Number of messages currently in the dead-letter store",
		},
	)
)
