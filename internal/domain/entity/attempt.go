package entity

import "time"

// AttemptOutcome describes how one (field, provider) lookup ended.
type AttemptOutcome string

const (
	OutcomeAccepted       AttemptOutcome = "accepted"
	OutcomeBelowThreshold AttemptOutcome = "below_threshold"
	OutcomeNoMatch        AttemptOutcome = "no_match"
	OutcomeError          AttemptOutcome = "error"
)

// Attempt is one entry of a record's attempt history.
// Class and Error are set only when Outcome is OutcomeError.
type Attempt struct {
	Field      string         `json:"field"`
	Provider   string         `json:"provider"`
	Outcome    AttemptOutcome `json:"outcome"`
	Class      ErrorClass     `json:"class,omitempty"`
	Error      string         `json:"error,omitempty"`
	Calls      int            `json:"calls"`
	Confidence float64        `json:"confidence,omitempty"`
	At         time.Time      `json:"at"`
}

// Failed reports whether the attempt ended in an error.
func (a Attempt) Failed() bool {
	return a.Outcome == OutcomeError
}
