package retry

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"track-enricher/internal/domain/entity"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:    4,
		BaseDelay:      5 * time.Millisecond,
		Multiplier:     2.0,
		MaxDelay:       50 * time.Millisecond,
		JitterFraction: 0,
	}
}

func TestDo_Success(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &HTTPError{StatusCode: 503, Message: "Service Unavailable"}
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_RetryExhausted(t *testing.T) {
	attempts := 0
	last := &HTTPError{StatusCode: 502, Message: "Bad Gateway"}
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		attempts++
		return last
	})

	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if re.Class != entity.ClassRetryExhausted {
		t.Errorf("expected class %s, got %s", entity.ClassRetryExhausted, re.Class)
	}
	if re.Cause != entity.ClassRetryableTransient {
		t.Errorf("expected cause %s, got %s", entity.ClassRetryableTransient, re.Cause)
	}
	if re.Attempts != 4 || attempts != 4 {
		t.Errorf("expected 4 attempts, got %d (calls %d)", re.Attempts, attempts)
	}
	if !errors.Is(err, last) {
		t.Errorf("expected the last error to be wrapped")
	}
	if entity.ClassOf(err) != entity.ClassRetryExhausted {
		t.Errorf("expected ClassOf=%s, got %s", entity.ClassRetryExhausted, entity.ClassOf(err))
	}
}

func TestDo_FatalIsNotRetried(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		attempts++
		return &HTTPError{StatusCode: 401, Message: "Unauthorized"}
	})

	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if entity.ClassOf(err) != entity.ClassFatalUnretryable {
		t.Errorf("expected %s, got %s", entity.ClassFatalUnretryable, entity.ClassOf(err))
	}
}

func TestDo_ContextCanceledDuringWait(t *testing.T) {
	p := fastPolicy()
	p.BaseDelay = time.Second
	p.MaxDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Do(ctx, p, func(context.Context) error {
		attempts++
		return &HTTPError{StatusCode: 500, Message: "Server Error"}
	})

	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("wait should end when the context is cancelled")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if entity.ClassOf(err) != entity.ClassDeadlineExceeded {
		t.Errorf("expected %s, got %v", entity.ClassDeadlineExceeded, err)
	}
}

func TestDo_DeadlineShorterThanBackoff(t *testing.T) {
	p := fastPolicy()
	p.BaseDelay = time.Second
	p.MaxDelay = 2 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Do(ctx, p, func(context.Context) error {
		return &HTTPError{StatusCode: 500}
	})
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("expected fail fast when the backoff cannot fit before the deadline")
	}
	if entity.ClassOf(err) != entity.ClassDeadlineExceeded {
		t.Errorf("expected %s, got %v", entity.ClassDeadlineExceeded, err)
	}
}

func TestDo_RateLimitedWaitsForWindow(t *testing.T) {
	p := fastPolicy()
	p.RateLimitWindow = 60 * time.Millisecond

	var states []CallState
	p.OnRetry = func(s CallState) { states = append(states, s) }

	attempts := 0
	start := time.Now()
	err := Do(context.Background(), p, func(context.Context) error {
		attempts++
		if attempts == 1 {
			return &HTTPError{StatusCode: 429, Message: "Too Many Requests"}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("expected to wait at least the provider window, waited %v", elapsed)
	}
	if len(states) != 1 {
		t.Fatalf("expected 1 retry, got %d", len(states))
	}
	if states[0].LastClass != entity.ClassRetryableRateLimited {
		t.Errorf("expected last class %s, got %s", entity.ClassRetryableRateLimited, states[0].LastClass)
	}
	if states[0].NextDelay < 60*time.Millisecond {
		t.Errorf("expected next delay >= window, got %v", states[0].NextDelay)
	}
}

func TestDo_RetryAfterHonored(t *testing.T) {
	p := fastPolicy()
	var delay time.Duration
	p.OnRetry = func(s CallState) { delay = s.NextDelay }

	attempts := 0
	_ = Do(context.Background(), p, func(context.Context) error {
		attempts++
		if attempts == 1 {
			return &HTTPError{StatusCode: 429, RetryAfter: 30 * time.Millisecond}
		}
		return nil
	})

	if delay != 30*time.Millisecond {
		t.Errorf("expected Retry-After delay 30ms, got %v", delay)
	}
}

func TestDo_BackoffGrowsAndCaps(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond, Multiplier: 2, MaxDelay: 25 * time.Millisecond}
	var delays []time.Duration
	p.OnRetry = func(s CallState) { delays = append(delays, s.NextDelay) }

	_ = Do(context.Background(), p, func(context.Context) error {
		return &TransientError{Err: errors.New("reset")}
	})

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond, 25 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("expected %d delays, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d: expected %v, got %v", i, want[i], delays[i])
		}
	}
}

func TestDo_BeforeRetryAborts(t *testing.T) {
	p := fastPolicy()
	p.BeforeRetry = func(context.Context) error { return entity.ErrRateLimitTimeout }

	attempts := 0
	err := Do(context.Background(), p, func(context.Context) error {
		attempts++
		return &HTTPError{StatusCode: 503}
	})

	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if !errors.Is(err, entity.ErrRateLimitTimeout) {
		t.Errorf("expected ErrRateLimitTimeout, got %v", err)
	}
	if AttemptsOf(err) != 1 {
		t.Errorf("expected AttemptsOf=1, got %d", AttemptsOf(err))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want entity.ErrorClass
	}{
		{"nil", nil, ""},
		{"500", &HTTPError{StatusCode: 500}, entity.ClassRetryableTransient},
		{"503 wrapped", fmt.Errorf("search: %w", &HTTPError{StatusCode: 503}), entity.ClassRetryableTransient},
		{"408", &HTTPError{StatusCode: 408}, entity.ClassRetryableTransient},
		{"429", &HTTPError{StatusCode: 429}, entity.ClassRetryableRateLimited},
		{"400", &HTTPError{StatusCode: 400}, entity.ClassFatalUnretryable},
		{"401", &HTTPError{StatusCode: 401}, entity.ClassFatalUnretryable},
		{"403", &HTTPError{StatusCode: 403}, entity.ClassFatalUnretryable},
		{"malformed", fmt.Errorf("decode: %w", ErrMalformedResponse), entity.ClassFatalUnretryable},
		{"conn refused", syscall.ECONNREFUSED, entity.ClassRetryableTransient},
		{"conn reset", syscall.ECONNRESET, entity.ClassRetryableTransient},
		{"canceled", context.Canceled, entity.ClassDeadlineExceeded},
		{"deadline", context.DeadlineExceeded, entity.ClassDeadlineExceeded},
		{"validation", &entity.ValidationError{Field: "title", Message: "empty"}, entity.ClassFatalUnretryable},
		{"unknown", errors.New("boom"), entity.ClassRetryableTransient},
		{"exhausted keeps own class", &Error{Class: entity.ClassRetryExhausted, Err: &HTTPError{StatusCode: 503}}, entity.ClassRetryExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := ParseRetryAfter("3", now); got != 3*time.Second {
		t.Errorf("expected 3s, got %v", got)
	}
	if got := ParseRetryAfter(now.Add(10*time.Second).Format(time.RFC1123), now); got != 10*time.Second {
		t.Errorf("expected 10s, got %v", got)
	}
	if got := ParseRetryAfter("soon", now); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestAddJitter(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		got := addJitter(base, 0.1)
		if got < base || got > base+10*time.Millisecond {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
	if got := addJitter(base, 0); got != base {
		t.Errorf("expected no jitter with zero fraction, got %v", got)
	}
}
