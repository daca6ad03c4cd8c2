package entity

import (
	"time"
)

// MessageStatus is the replay state of a dead-letter message.
type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageReplaying MessageStatus = "replaying"
)

// DeadLetterMessage captures a record that failed enrichment.
// ID is the source record id and doubles as the idempotency key, so
// re-enqueueing the same record replaces the previous message.
type DeadLetterMessage struct {
	ID          string            `json:"id"`
	Request     EnrichmentRequest `json:"request"`
	Class       ErrorClass        `json:"classification"`
	Provider    string            `json:"provider,omitempty"`
	Field       string            `json:"field,omitempty"`
	Error       string            `json:"error"`
	Attempts    []Attempt         `json:"attempts"`
	Status      MessageStatus     `json:"status"`
	ReplayCount int               `json:"replay_count"`
	EnqueuedAt  time.Time         `json:"enqueued_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewDeadLetterMessage builds a pending message from a failed record.
func NewDeadLetterMessage(req EnrichmentRequest, rec *EnrichmentRecord, now time.Time) *DeadLetterMessage {
	snap := rec.Snapshot()
	msg := &DeadLetterMessage{
		ID:         req.RecordID,
		Request:    req,
		Attempts:   snap.Attempts,
		Status:     MessagePending,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}
	if snap.Failure != nil {
		msg.Class = snap.Failure.Class
		msg.Provider = snap.Failure.Provider
		msg.Field = snap.Failure.Field
		msg.Error = snap.Failure.Message
	}
	return msg
}

// Validate enforces the dead-letter invariants.
func (m *DeadLetterMessage) Validate() error {
	if m.ID == "" {
		return &ValidationError{Field: "id", Message: "message id is required"}
	}
	if !m.Class.Valid() {
		return &ValidationError{Field: "classification", Message: "unknown classification " + string(m.Class)}
	}
	// only malformed input may be dead-lettered without having tried anything
	if len(m.Attempts) == 0 && m.Class != ClassFatalUnretryable {
		return &ValidationError{Field: "attempts", Message: "attempt history is empty"}
	}
	return nil
}
