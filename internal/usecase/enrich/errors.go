package enrich

import "errors"

var (
	// ErrDeadLetterFailed means a failed record could not be persisted to the
	// dead-letter store. It is the only error Enrich returns for a record
	// that was actually processed.
	ErrDeadLetterFailed = errors.New("failed to persist dead letter")

	// ErrMissingRecordID rejects requests that cannot be keyed in the
	// dead-letter store.
	ErrMissingRecordID = errors.New("record id is required")
)
