package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"track-enricher/internal/domain/entity"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errUpstream = errors.New("upstream 503")

func failing(calls *int32) func(context.Context) error {
	return func(context.Context) error {
		atomic.AddInt32(calls, 1)
		return errUpstream
	}
}

func succeeding(calls *int32) func(context.Context) error {
	return func(context.Context) error {
		atomic.AddInt32(calls, 1)
		return nil
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	clock := newFakeClock()
	b := New("spotify", Settings{FailureThreshold: 3, Window: time.Minute, Cooldown: 30 * time.Second}, WithClock(clock))
	ctx := context.Background()

	var calls int32
	for i := 0; i < 3; i++ {
		if err := b.Call(ctx, failing(&calls)); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}

	if b.State() != entity.BreakerOpen {
		t.Fatalf("expected state=open, got %s", b.State())
	}

	// no further calls reach fn until the cool-down elapses
	for i := 0; i < 5; i++ {
		clock.Advance(5 * time.Second)
		if err := b.Call(ctx, failing(&calls)); !errors.Is(err, entity.ErrCircuitOpen) {
			t.Fatalf("expected ErrCircuitOpen, got %v", err)
		}
	}
	if calls != 3 {
		t.Errorf("expected 3 calls to reach fn, got %d", calls)
	}
}

func TestBreaker_SuccessResetsStreak(t *testing.T) {
	clock := newFakeClock()
	b := New("musicbrainz", Settings{FailureThreshold: 3, Cooldown: time.Second}, WithClock(clock))
	ctx := context.Background()

	var calls int32
	_ = b.Call(ctx, failing(&calls))
	_ = b.Call(ctx, failing(&calls))
	_ = b.Call(ctx, succeeding(&calls))
	_ = b.Call(ctx, failing(&calls))
	_ = b.Call(ctx, failing(&calls))

	if b.State() != entity.BreakerClosed {
		t.Errorf("expected state=closed, got %s", b.State())
	}
	if got := b.Stats().ConsecutiveFailures; got != 2 {
		t.Errorf("expected 2 consecutive failures, got %d", got)
	}
}

func TestBreaker_FailuresOutsideWindowExpire(t *testing.T) {
	clock := newFakeClock()
	b := New("discogs", Settings{FailureThreshold: 3, Window: 10 * time.Second, Cooldown: time.Second}, WithClock(clock))
	ctx := context.Background()

	var calls int32
	_ = b.Call(ctx, failing(&calls))
	_ = b.Call(ctx, failing(&calls))
	clock.Advance(11 * time.Second)
	_ = b.Call(ctx, failing(&calls))

	if b.State() != entity.BreakerClosed {
		t.Errorf("expected state=closed, got %s", b.State())
	}
	if got := b.Stats().ConsecutiveFailures; got != 1 {
		t.Errorf("expected 1 failure inside the window, got %d", got)
	}
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	clock := newFakeClock()
	b := New("spotify", Settings{FailureThreshold: 2, Cooldown: 30 * time.Second}, WithClock(clock))
	ctx := context.Background()

	var calls int32
	_ = b.Call(ctx, failing(&calls))
	_ = b.Call(ctx, failing(&calls))

	clock.Advance(30 * time.Second)
	if b.State() != entity.BreakerHalfOpen {
		t.Fatalf("expected state=half_open after cool-down, got %s", b.State())
	}

	if err := b.Call(ctx, succeeding(&calls)); err != nil {
		t.Fatalf("expected trial to succeed, got %v", err)
	}

	stats := b.Stats()
	if stats.State != entity.BreakerClosed {
		t.Errorf("expected state=closed, got %s", stats.State)
	}
	if stats.ConsecutiveFailures != 0 {
		t.Errorf("expected failure counter reset, got %d", stats.ConsecutiveFailures)
	}
}

func TestBreaker_HalfOpenFailureReopensAndRestartsCooldown(t *testing.T) {
	clock := newFakeClock()
	b := New("spotify", Settings{FailureThreshold: 2, Cooldown: 30 * time.Second}, WithClock(clock))
	ctx := context.Background()

	var calls int32
	_ = b.Call(ctx, failing(&calls))
	_ = b.Call(ctx, failing(&calls))

	clock.Advance(30 * time.Second)
	if err := b.Call(ctx, failing(&calls)); !errors.Is(err, errUpstream) {
		t.Fatalf("expected trial error, got %v", err)
	}

	stats := b.Stats()
	if stats.State != entity.BreakerOpen {
		t.Fatalf("expected state=open, got %s", stats.State)
	}
	if want := clock.Now().Add(30 * time.Second); !stats.OpenUntil.Equal(want) {
		t.Errorf("expected cool-down to restart until %v, got %v", want, stats.OpenUntil)
	}

	clock.Advance(29 * time.Second)
	if err := b.Call(ctx, succeeding(&calls)); !errors.Is(err, entity.ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen before the new cool-down ends, got %v", err)
	}
}

func TestBreaker_HalfOpenAllowsSingleTrial(t *testing.T) {
	clock := newFakeClock()
	b := New("songbpm", Settings{FailureThreshold: 1, Cooldown: time.Second}, WithClock(clock))
	ctx := context.Background()

	var calls int32
	_ = b.Call(ctx, failing(&calls))
	clock.Advance(time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Call(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := b.Call(ctx, succeeding(&calls)); !errors.Is(err, entity.ErrCircuitHalfOpenBusy) {
		t.Errorf("expected ErrCircuitHalfOpenBusy, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("trial returned %v", err)
	}
	if b.State() != entity.BreakerClosed {
		t.Errorf("expected state=closed, got %s", b.State())
	}
}

func TestBreaker_CallerCancellationIsNeutral(t *testing.T) {
	clock := newFakeClock()
	b := New("spotify", Settings{FailureThreshold: 1, Cooldown: time.Second}, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Call(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.State() != entity.BreakerClosed {
		t.Errorf("cancelled call must not trip the breaker, got %s", b.State())
	}

	err = b.Call(context.Background(), func(context.Context) error {
		return entity.ErrRateLimitTimeout
	})
	if !errors.Is(err, entity.ErrRateLimitTimeout) {
		t.Fatalf("expected ErrRateLimitTimeout, got %v", err)
	}
	if b.State() != entity.BreakerClosed {
		t.Errorf("rate limit timeout must not trip the breaker, got %s", b.State())
	}

	err = b.Call(context.Background(), func(context.Context) error {
		return entity.ErrRateLimitDeadline
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a deadline error, got %v", err)
	}
	if b.State() != entity.BreakerClosed {
		t.Errorf("a token beyond the caller deadline must not trip the breaker, got %s", b.State())
	}
}

func TestBreaker_CancelledTrialReleasesSlot(t *testing.T) {
	clock := newFakeClock()
	b := New("spotify", Settings{FailureThreshold: 1, Cooldown: time.Second}, WithClock(clock))

	var calls int32
	_ = b.Call(context.Background(), failing(&calls))
	clock.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	_ = b.Call(ctx, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})

	if b.State() != entity.BreakerHalfOpen {
		t.Fatalf("expected state=half_open, got %s", b.State())
	}
	if err := b.Call(context.Background(), succeeding(&calls)); err != nil {
		t.Errorf("expected next trial to run, got %v", err)
	}
}

func TestBreaker_ConcurrentFailuresCountedExactly(t *testing.T) {
	b := New("spotify", Settings{FailureThreshold: 1000, Cooldown: time.Minute})

	var wg sync.WaitGroup
	var calls int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Call(context.Background(), failing(&calls))
		}()
	}
	wg.Wait()

	if got := b.Stats().ConsecutiveFailures; got != 50 {
		t.Errorf("expected 50 failures, got %d", got)
	}
}

type memTrips struct {
	mu    sync.Mutex
	until map[string]time.Time
}

func (m *memTrips) Trip(_ context.Context, name string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.until[name] = until
	return nil
}

func (m *memTrips) OpenUntil(_ context.Context, name string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.until[name], nil
}

func TestBreaker_SharedTrip(t *testing.T) {
	clock := newFakeClock()
	store := &memTrips{until: make(map[string]time.Time)}
	a := New("spotify", Settings{FailureThreshold: 1, Cooldown: 30 * time.Second}, WithClock(clock), WithTripStore(store))
	b := New("spotify", Settings{FailureThreshold: 1, Cooldown: 30 * time.Second}, WithClock(clock), WithTripStore(store))

	var calls int32
	_ = a.Call(context.Background(), failing(&calls))

	if err := b.Call(context.Background(), succeeding(&calls)); !errors.Is(err, entity.ErrCircuitOpen) {
		t.Fatalf("expected second instance to adopt the trip, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestBreaker_StateChangeHook(t *testing.T) {
	clock := newFakeClock()
	var got []entity.BreakerState
	b := New("spotify", Settings{FailureThreshold: 1, Cooldown: time.Second},
		WithClock(clock),
		WithStateChange(func(_ string, _, to entity.BreakerState) { got = append(got, to) }))

	var calls int32
	_ = b.Call(context.Background(), failing(&calls))
	clock.Advance(time.Second)
	_ = b.Call(context.Background(), succeeding(&calls))

	want := []entity.BreakerState{entity.BreakerOpen, entity.BreakerHalfOpen, entity.BreakerClosed}
	if len(got) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
