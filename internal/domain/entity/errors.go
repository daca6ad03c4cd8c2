package entity

import (
	"context"
	"errors"
	"fmt"
)

// ErrorClass is the classification string surfaced to operators for a failed
// provider call or a failed record. The values are part of the public API of
// the dead-letter endpoints and must not change.
type ErrorClass string

const (
	ClassProviderDisabled     ErrorClass = "ProviderDisabled"
	ClassRateLimitTimeout     ErrorClass = "RateLimitTimeout"
	ClassCircuitOpen          ErrorClass = "CircuitOpen"
	ClassCircuitHalfOpenBusy  ErrorClass = "CircuitHalfOpenBusy"
	ClassRetryableTransient   ErrorClass = "retryable_transient"
	ClassRetryableRateLimited ErrorClass = "retryable_rate_limited"
	ClassFatalUnretryable     ErrorClass = "fatal_unretryable"
	ClassRetryExhausted       ErrorClass = "RetryExhausted"
	ClassDeadlineExceeded     ErrorClass = "deadline_exceeded"
	// ClassFieldUnavailable is not an error. It marks a field whose provider
	// list was exhausted without a satisfying result.
	ClassFieldUnavailable ErrorClass = "FieldUnavailable"
)

var knownClasses = map[ErrorClass]bool{
	ClassProviderDisabled:     true,
	ClassRateLimitTimeout:     true,
	ClassCircuitOpen:          true,
	ClassCircuitHalfOpenBusy:  true,
	ClassRetryableTransient:   true,
	ClassRetryableRateLimited: true,
	ClassFatalUnretryable:     true,
	ClassRetryExhausted:       true,
	ClassDeadlineExceeded:     true,
	ClassFieldUnavailable:     true,
}

// Valid reports whether c is one of the known classifications.
func (c ErrorClass) Valid() bool {
	return knownClasses[c]
}

// Retryable reports whether a dead letter with this classification is worth
// replaying automatically. Fatal classifications need an operator.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ClassFatalUnretryable, ClassProviderDisabled:
		return false
	default:
		return c.Valid()
	}
}

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")

	// ErrAlreadyClaimed indicates that another replay holds the dead letter
	ErrAlreadyClaimed = errors.New("dead letter already claimed")

	ErrProviderDisabled    = errors.New("provider disabled")
	ErrRateLimitTimeout    = errors.New("rate limit wait timed out")
	ErrCircuitOpen         = errors.New("circuit open")
	ErrCircuitHalfOpenBusy = errors.New("circuit half-open trial in progress")

	// ErrRateLimitDeadline is returned when the next token comes after the
	// caller's deadline. It matches context.DeadlineExceeded.
	ErrRateLimitDeadline = fmt.Errorf("rate limit wait outlasts the deadline: %w", context.DeadlineExceeded)
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ErrorClass classifies malformed input as unretryable.
func (e *ValidationError) ErrorClass() ErrorClass {
	return ClassFatalUnretryable
}

// Unwrap lets errors.Is(err, ErrValidationFailed) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// Classified is implemented by errors that know their own classification.
type Classified interface {
	error
	ErrorClass() ErrorClass
}

// ClassOf returns the classification of err, or "" for nil. Errors that do
// not carry a classification are reported as retryable_transient.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}

	var classified Classified
	if errors.As(err, &classified) {
		return classified.ErrorClass()
	}

	switch {
	case errors.Is(err, ErrProviderDisabled):
		return ClassProviderDisabled
	case errors.Is(err, ErrRateLimitTimeout):
		return ClassRateLimitTimeout
	case errors.Is(err, ErrCircuitOpen):
		return ClassCircuitOpen
	case errors.Is(err, ErrCircuitHalfOpenBusy):
		return ClassCircuitHalfOpenBusy
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ClassDeadlineExceeded
	}

	return ClassRetryableTransient
}
