package entity

import (
	"sort"
	"sync"
	"time"
)

// RecordStatus is the lifecycle state of an EnrichmentRecord.
type RecordStatus string

const (
	StatusPending  RecordStatus = "pending"
	StatusPartial  RecordStatus = "partial"
	StatusComplete RecordStatus = "complete"
	StatusFailed   RecordStatus = "failed"
)

// Failure describes why a record ended in StatusFailed.
type Failure struct {
	Class    ErrorClass `json:"class"`
	Field    string     `json:"field,omitempty"`
	Provider string     `json:"provider,omitempty"`
	Message  string     `json:"message"`
}

// EnrichmentRecord accumulates the merged result for one request.
//
// Field goroutines of the orchestrator write to the record concurrently, so
// every mutation goes through the methods below. Read the exported fields
// only from a Snapshot or after enrichment has returned.
type EnrichmentRecord struct {
	RecordID      string                   `json:"record_id"`
	CorrelationID string                   `json:"correlation_id"`
	Status        RecordStatus             `json:"status"`
	Fields        map[string]FieldResult   `json:"fields"`
	Superseded    map[string][]FieldResult `json:"superseded,omitempty"`
	Unavailable   map[string]bool          `json:"unavailable,omitempty"`
	Attempts      []Attempt                `json:"attempts"`
	Failure       *Failure                 `json:"failure,omitempty"`
	StartedAt     time.Time                `json:"started_at"`
	FinishedAt    time.Time                `json:"finished_at,omitempty"`

	mu sync.Mutex
}

// NewRecord creates a pending record for req.
func NewRecord(req EnrichmentRequest) *EnrichmentRecord {
	return &EnrichmentRecord{
		RecordID:      req.RecordID,
		CorrelationID: req.CorrelationID,
		Status:        StatusPending,
		Fields:        make(map[string]FieldResult),
		Superseded:    make(map[string][]FieldResult),
		Unavailable:   make(map[string]bool),
	}
}

// Apply merges r into the record and reports whether it was stored.
//
// A result replaces an existing one only when its confidence is strictly
// higher, unless force is set. The replaced result is kept in Superseded.
func (rec *EnrichmentRecord) Apply(r FieldResult, force bool) bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if current, ok := rec.Fields[r.Field]; ok {
		if !force && r.Confidence <= current.Confidence {
			return false
		}
		rec.Superseded[r.Field] = append(rec.Superseded[r.Field], current)
	}
	rec.Fields[r.Field] = r
	delete(rec.Unavailable, r.Field)
	if rec.Status == StatusPending {
		rec.Status = StatusPartial
	}
	return true
}

// Result returns the current result for field.
func (rec *EnrichmentRecord) Result(field string) (FieldResult, bool) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	r, ok := rec.Fields[field]
	return r, ok
}

// MarkUnavailable records that field exhausted its provider list.
func (rec *EnrichmentRecord) MarkUnavailable(field string) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if _, ok := rec.Fields[field]; ok {
		return
	}
	rec.Unavailable[field] = true
}

// IsUnavailable reports whether field was marked unavailable.
func (rec *EnrichmentRecord) IsUnavailable(field string) bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.Unavailable[field]
}

// RecordAttempt appends to the attempt history.
func (rec *EnrichmentRecord) RecordAttempt(a Attempt) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.Attempts = append(rec.Attempts, a)
}

// FieldAttempts returns the attempts made for field, oldest first.
func (rec *EnrichmentRecord) FieldAttempts(field string) []Attempt {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var out []Attempt
	for _, a := range rec.Attempts {
		if a.Field == field {
			out = append(out, a)
		}
	}
	return out
}

// Begin resets the record for a new enrichment pass.
// Previously merged fields are kept so confidence never regresses.
func (rec *EnrichmentRecord) Begin(now time.Time) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.Status = StatusPending
	if len(rec.Fields) > 0 {
		rec.Status = StatusPartial
	}
	rec.Failure = nil
	rec.Unavailable = make(map[string]bool)
	rec.StartedAt = now
	rec.FinishedAt = time.Time{}
}

// Complete marks the record complete.
func (rec *EnrichmentRecord) Complete(now time.Time) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.Status = StatusComplete
	rec.Failure = nil
	rec.FinishedAt = now
}

// Fail marks the record failed with f.
func (rec *EnrichmentRecord) Fail(f Failure, now time.Time) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.Status = StatusFailed
	rec.Failure = &f
	rec.FinishedAt = now
}

// CurrentStatus returns the status under the record lock.
func (rec *EnrichmentRecord) CurrentStatus() RecordStatus {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.Status
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (rec *EnrichmentRecord) Snapshot() *EnrichmentRecord {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	cp := &EnrichmentRecord{
		RecordID:      rec.RecordID,
		CorrelationID: rec.CorrelationID,
		Status:        rec.Status,
		Fields:        make(map[string]FieldResult, len(rec.Fields)),
		Superseded:    make(map[string][]FieldResult, len(rec.Superseded)),
		Unavailable:   make(map[string]bool, len(rec.Unavailable)),
		Attempts:      append([]Attempt(nil), rec.Attempts...),
		StartedAt:     rec.StartedAt,
		FinishedAt:    rec.FinishedAt,
	}
	for k, v := range rec.Fields {
		cp.Fields[k] = v
	}
	for k, v := range rec.Superseded {
		cp.Superseded[k] = append([]FieldResult(nil), v...)
	}
	for k, v := range rec.Unavailable {
		cp.Unavailable[k] = v
	}
	if rec.Failure != nil {
		f := *rec.Failure
		cp.Failure = &f
	}
	return cp
}

// UnavailableFields returns the unavailable field names in sorted order.
func (rec *EnrichmentRecord) UnavailableFields() []string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]string, 0, len(rec.Unavailable))
	for f := range rec.Unavailable {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
