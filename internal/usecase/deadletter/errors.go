// Package deadletter manages records that failed enrichment: it stores them
// keyed by record id, reports on them, and replays them through the
// orchestrator.
package deadletter

import "errors"

// Sentinel errors for dead-letter use case operations.
var (
	// ErrMessageNotFound indicates that no message exists for the id.
	ErrMessageNotFound = errors.New("dead letter message not found")

	// ErrInvalidMessageID indicates an empty message id.
	ErrInvalidMessageID = errors.New("invalid dead letter message id")

	// ErrReplayInProgress indicates another replay of the same message is running.
	ErrReplayInProgress = errors.New("replay already in progress")

	// ErrInvalidMessage indicates a message that violates the dead-letter
	// invariants and was refused.
	ErrInvalidMessage = errors.New("invalid dead letter message")
)
