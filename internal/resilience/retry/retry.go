// Package retry provides retry logic with exponential backoff and jitter.
// It helps handle transient failures gracefully by automatically retrying failed operations.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"track-enricher/internal/domain/entity"
)

// Policy holds the configuration for retry logic.
type Policy struct {
	// MaxAttempts is the maximum number of calls, including the first one
	MaxAttempts int

	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration

	// Multiplier is the multiplier for exponential backoff
	Multiplier float64

	// MaxDelay is the maximum backoff delay between retries
	MaxDelay time.Duration

	// JitterFraction is the fraction of delay to add as random jitter (0.0 to 1.0)
	JitterFraction float64

	// RateLimitWindow is the provider's rate limit window. Rate-limited
	// errors wait at least this long.
	RateLimitWindow time.Duration

	// BeforeRetry runs before every call after the first. An error aborts
	// the retry loop with that error.
	BeforeRetry func(ctx context.Context) error

	// OnRetry observes each scheduled retry.
	OnRetry func(CallState)
}

// DefaultPolicy returns base 500ms, multiplier 2, cap 30s, 4 attempts.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    4,
		BaseDelay:      500 * time.Millisecond,
		Multiplier:     2.0,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.1,
	}
}

// CallState is the progress of one Do call. It lives only as long as the call.
type CallState struct {
	Attempt   int
	LastClass entity.ErrorClass
	LastError error
	NextDelay time.Duration
	Deadline  time.Time
}

// Do calls fn until it succeeds, the attempt budget is spent, or the error is
// not retryable. Waits between attempts are timer based and end early when
// ctx is done.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	state := CallState{}
	state.Deadline, _ = ctx.Deadline()
	delay := p.BaseDelay

	for attempt := 1; ; attempt++ {
		state.Attempt = attempt

		if attempt > 1 && p.BeforeRetry != nil {
			if err := p.BeforeRetry(ctx); err != nil {
				return &Error{Class: Classify(err), Cause: state.LastClass, Attempts: attempt - 1, Err: err}
			}
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return nil
		}

		class := Classify(err)
		state.LastClass = class
		state.LastError = err

		switch class {
		case entity.ClassRetryableTransient, entity.ClassRetryableRateLimited:
		case entity.ClassDeadlineExceeded:
			return &Error{Class: entity.ClassDeadlineExceeded, Cause: class, Attempts: attempt, Err: err}
		default:
			return &Error{Class: entity.ClassFatalUnretryable, Cause: class, Attempts: attempt, Err: err}
		}

		if attempt >= p.MaxAttempts {
			return &Error{Class: entity.ClassRetryExhausted, Cause: class, Attempts: attempt, Err: err}
		}

		wait := addJitter(delay, p.JitterFraction)
		if p.MaxDelay > 0 && wait > p.MaxDelay {
			wait = p.MaxDelay
		}
		if class == entity.ClassRetryableRateLimited {
			wait = rateLimitedWait(wait, p.RateLimitWindow, err)
		}
		state.NextDelay = wait

		if !state.Deadline.IsZero() && time.Until(state.Deadline) < wait {
			return &Error{Class: entity.ClassDeadlineExceeded, Cause: class, Attempts: attempt, Err: err}
		}

		if p.OnRetry != nil {
			p.OnRetry(state)
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return &Error{Class: entity.ClassDeadlineExceeded, Cause: class, Attempts: attempt, Err: ctx.Err()}
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

// rateLimitedWait stretches a backoff to the provider window or the
// server's Retry-After, whichever is longest.
func rateLimitedWait(backoff, window time.Duration, err error) time.Duration {
	wait := backoff
	if window > wait {
		wait = window
	}
	if ra := retryAfterOf(err); ra > wait {
		wait = ra
	}
	return wait
}

func retryAfterOf(err error) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.RetryAfter
	}
	return 0
}

// addJitter adds random jitter to a duration to prevent thundering herd.
func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}
	// #nosec G404 -- Using math/rand is acceptable for jitter calculation.
	// Cryptographic randomness is not required for retry backoff jitter.
	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	return duration + jitter
}
