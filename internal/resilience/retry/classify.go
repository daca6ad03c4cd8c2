package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"track-enricher/internal/domain/entity"
)

// Classify maps a provider call error onto the retry taxonomy.
//
// Errors that already know their class (entity.Classified) report it.
// Unknown errors are treated as transient.
func Classify(err error) entity.ErrorClass {
	if err == nil {
		return ""
	}

	var outcome *Error
	if errors.As(err, &outcome) {
		return outcome.Class
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return entity.ClassDeadlineExceeded
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr.StatusCode)
	}

	if errors.Is(err, ErrMalformedResponse) {
		return entity.ClassFatalUnretryable
	}

	var classified entity.Classified
	if errors.As(err, &classified) {
		return classified.ErrorClass()
	}

	// Network errors (timeout)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return entity.ClassRetryableTransient
	}

	// Syscall errors
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return entity.ClassRetryableTransient
	}

	return entity.ClassOf(err)
}

func classifyStatus(code int) entity.ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return entity.ClassRetryableRateLimited
	case code == http.StatusRequestTimeout, code >= 500:
		return entity.ClassRetryableTransient
	case code >= 400:
		return entity.ClassFatalUnretryable
	default:
		return entity.ClassRetryableTransient
	}
}

// IsRetryable reports whether Do would try err again.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case entity.ClassRetryableTransient, entity.ClassRetryableRateLimited:
		return true
	default:
		return false
	}
}
