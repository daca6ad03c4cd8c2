// Package slo tracks the enrichment service level objectives.
package slo

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets for the enrichment pipeline.
const (
	// CompletionSLO is the share of records that must finish without being dead-lettered
	CompletionSLO = 0.99

	// DeadLetterDepthSLO is the dead-letter backlog above which operators are paged
	DeadLetterDepthSLO = 1000

	// DefaultWindow is the number of recent records the completion ratio covers
	DefaultWindow = 500
)

var (
	// SLOCompletion tracks the completion ratio over the last window of records
	SLOCompletion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_enrichment_completion_ratio",
			Help: "Share of recent records that completed (0-1), target: 0.99",
		},
	)

	// SLODeadLetterBacklog mirrors the dead-letter depth against its target
	SLODeadLetterBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_deadletter_backlog",
			Help: "Dead-letter messages awaiting replay, target: < 1000",
		},
	)
)

// Tracker keeps a ring of the most recent record outcomes.
type Tracker struct {
	mu     sync.Mutex
	ring   []bool
	next   int
	filled bool
	ok     int
}

// NewTracker returns a tracker over the last window outcomes.
func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{ring: make([]bool, window)}
}

// Observe records one finished record and updates SLOCompletion.
func (t *Tracker) Observe(completed bool) {
	t.mu.Lock()
	if t.filled && t.ring[t.next] {
		t.ok--
	}
	t.ring[t.next] = completed
	if completed {
		t.ok++
	}
	t.next++
	if t.next == len(t.ring) {
		t.next = 0
		t.filled = true
	}
	ratio := t.ratioLocked()
	t.mu.Unlock()

	SLOCompletion.Set(ratio)
}

// Ratio returns the completion ratio. With no observations it is 1.
func (t *Tracker) Ratio() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ratioLocked()
}

func (t *Tracker) ratioLocked() float64 {
	n := t.next
	if t.filled {
		n = len(t.ring)
	}
	if n == 0 {
		return 1
	}
	return float64(t.ok) / float64(n)
}

// Healthy reports whether the completion ratio meets CompletionSLO.
func (t *Tracker) Healthy() bool {
	return t.Ratio() >= CompletionSLO
}

// UpdateDeadLetterBacklog records the current dead-letter depth.
func UpdateDeadLetterBacklog(depth int64) {
	SLODeadLetterBacklog.Set(float64(depth))
}
