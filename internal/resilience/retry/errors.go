package retry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"track-enricher/internal/domain/entity"
)

// ErrMalformedResponse marks a provider response that could not be decoded.
// Retrying would get the same bytes back, so it is unretryable.
var ErrMalformedResponse = errors.New("malformed provider response")

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	// RetryAfter is the server-requested delay, zero when absent.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

// TransientError wraps an error that is known to be temporary.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// ErrorClass implements entity.Classified.
func (e *TransientError) ErrorClass() entity.ErrorClass {
	return entity.ClassRetryableTransient
}

// Error is returned by Do when the call did not succeed.
type Error struct {
	// Class is RetryExhausted, fatal_unretryable or deadline_exceeded.
	Class entity.ErrorClass
	// Cause is the classification of the last underlying error.
	Cause    entity.ErrorClass
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", e.Class, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorClass implements entity.Classified.
func (e *Error) ErrorClass() entity.ErrorClass { return e.Class }

// AttemptsOf returns the number of calls recorded in err, or 1 for any other
// non-nil error.
func AttemptsOf(err error) int {
	if err == nil {
		return 0
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Attempts
	}
	return 1
}
