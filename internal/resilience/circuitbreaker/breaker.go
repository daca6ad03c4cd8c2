// Package circuitbreaker isolates failing dependencies.
//
// Breaker is the per-provider state machine used in front of every catalog
// lookup. StoreBreaker wraps github.com/sony/gobreaker and protects the
// dead-letter store.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"track-enricher/internal/domain/entity"
)

// Settings configures a provider breaker.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int

	// Window bounds how far apart the counted failures may be.
	// Zero means failures never expire.
	Window time.Duration

	// Cooldown is how long the circuit stays open before a trial call is allowed.
	Cooldown time.Duration
}

// DefaultSettings returns threshold 5, window 1m and cool-down 30s.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		Window:           time.Minute,
		Cooldown:         30 * time.Second,
	}
}

// TripStore shares open circuits between service instances.
type TripStore interface {
	Trip(ctx context.Context, name string, until time.Time) error
	OpenUntil(ctx context.Context, name string) (time.Time, error)
}

// StateChangeFunc is called after every state transition, outside the lock.
type StateChangeFunc func(name string, from, to entity.BreakerState)

// Stats is a snapshot of a breaker.
type Stats struct {
	State               entity.BreakerState
	ConsecutiveFailures int
	LastStateChange     time.Time
	OpenUntil           time.Time
}

// Breaker is a closed / open / half_open circuit breaker for one provider.
// All transitions happen under mu.
type Breaker struct {
	name     string
	clock    Clock
	trips    TripStore
	onChange StateChangeFunc

	mu         sync.Mutex
	settings   Settings
	state      entity.BreakerState
	streak     []time.Time
	lastChange time.Time
	openUntil  time.Time
	trial      bool
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(b *Breaker) { b.clock = c }
}

// WithTripStore shares trips through store.
func WithTripStore(store TripStore) Option {
	return func(b *Breaker) { b.trips = store }
}

// WithStateChange registers fn for state transitions.
func WithStateChange(fn StateChangeFunc) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// New creates a closed breaker.
func New(name string, settings Settings, opts ...Option) *Breaker {
	b := &Breaker{
		name:     name,
		clock:    SystemClock{},
		settings: normalize(settings),
		state:    entity.BreakerClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.lastChange = b.clock.Now()
	return b
}

func normalize(s Settings) Settings {
	def := DefaultSettings()
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = def.FailureThreshold
	}
	if s.Cooldown <= 0 {
		s.Cooldown = def.Cooldown
	}
	if s.Window < 0 {
		s.Window = 0
	}
	return s
}

// Name returns the provider name.
func (b *Breaker) Name() string {
	return b.name
}

// Update replaces the settings. The current state and failure streak are kept.
func (b *Breaker) Update(settings Settings) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings = normalize(settings)
}

type transition struct {
	from, to entity.BreakerState
}

// Call runs fn if the circuit allows it and records the outcome.
//
// In the open state it returns entity.ErrCircuitOpen without calling fn.
// In the half_open state only one trial runs at a time; concurrent callers
// get entity.ErrCircuitHalfOpenBusy.
//
// An error caused by the caller's own context ending, or by a rate limit
// wait timeout, is neither a success nor a failure.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	remoteUntil := b.remoteOpenUntil(ctx)

	trial, err := b.allow(remoteUntil)
	if err != nil {
		return err
	}

	callErr := fn(ctx)
	b.record(ctx, trial, callErr)
	return callErr
}

func (b *Breaker) remoteOpenUntil(ctx context.Context) time.Time {
	if b.trips == nil {
		return time.Time{}
	}
	until, err := b.trips.OpenUntil(ctx, b.name)
	if err != nil {
		slog.Debug("trip store lookup failed",
			slog.String("circuit", b.name),
			slog.Any("error", err))
		return time.Time{}
	}
	return until
}

func (b *Breaker) allow(remoteUntil time.Time) (trial bool, err error) {
	var changes []transition

	b.mu.Lock()
	now := b.clock.Now()
	if b.state == entity.BreakerClosed && remoteUntil.After(now) {
		b.openUntil = remoteUntil
		changes = append(changes, b.setState(entity.BreakerOpen, now))
	}
	if c, ok := b.refresh(now); ok {
		changes = append(changes, c)
	}

	switch b.state {
	case entity.BreakerOpen:
		err = entity.ErrCircuitOpen
	case entity.BreakerHalfOpen:
		if b.trial {
			err = entity.ErrCircuitHalfOpenBusy
		} else {
			b.trial = true
			trial = true
		}
	}
	b.mu.Unlock()

	b.notify(changes)
	return trial, err
}

// refresh moves an expired open circuit to half_open. Caller holds mu.
func (b *Breaker) refresh(now time.Time) (transition, bool) {
	if b.state == entity.BreakerOpen && !now.Before(b.openUntil) {
		return b.setState(entity.BreakerHalfOpen, now), true
	}
	return transition{}, false
}

// setState changes the state. Caller holds mu.
func (b *Breaker) setState(to entity.BreakerState, now time.Time) transition {
	t := transition{from: b.state, to: to}
	b.state = to
	b.lastChange = now
	return t
}

func (b *Breaker) record(ctx context.Context, trial bool, err error) {
	var (
		changes []transition
		tripped time.Time
	)

	b.mu.Lock()
	now := b.clock.Now()
	if trial {
		b.trial = false
	}

	switch {
	case err == nil:
		if b.state == entity.BreakerHalfOpen && trial {
			changes = append(changes, b.setState(entity.BreakerClosed, now))
		}
		if b.state == entity.BreakerClosed {
			b.streak = b.streak[:0]
		}

	case isNeutral(ctx, err):
		// caller went away or never got a token; nothing learned about the provider

	case b.state == entity.BreakerHalfOpen && trial:
		b.addFailure(now)
		b.openUntil = now.Add(b.settings.Cooldown)
		changes = append(changes, b.setState(entity.BreakerOpen, now))
		tripped = b.openUntil

	case b.state == entity.BreakerClosed:
		b.addFailure(now)
		if len(b.streak) >= b.settings.FailureThreshold {
			b.openUntil = now.Add(b.settings.Cooldown)
			changes = append(changes, b.setState(entity.BreakerOpen, now))
			tripped = b.openUntil
		}
	}
	b.mu.Unlock()

	b.notify(changes)
	if !tripped.IsZero() {
		b.publishTrip(ctx, tripped)
	}
}

// addFailure appends to the streak and drops failures outside the window.
// Caller holds mu.
func (b *Breaker) addFailure(now time.Time) {
	b.streak = append(b.streak, now)
	if w := b.settings.Window; w > 0 {
		cut := 0
		for cut < len(b.streak) && now.Sub(b.streak[cut]) > w {
			cut++
		}
		b.streak = b.streak[cut:]
	}
	if extra := len(b.streak) - b.settings.FailureThreshold; extra > 0 {
		b.streak = b.streak[extra:]
	}
}

func (b *Breaker) publishTrip(ctx context.Context, until time.Time) {
	if b.trips == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := b.trips.Trip(ctx, b.name, until); err != nil {
		slog.Warn("failed to publish circuit trip",
			slog.String("circuit", b.name),
			slog.Any("error", err))
	}
}

func (b *Breaker) notify(changes []transition) {
	for _, c := range changes {
		slog.Warn("circuit breaker state changed",
			slog.String("circuit", b.name),
			slog.String("from", string(c.from)),
			slog.String("to", string(c.to)))
		if b.onChange != nil {
			b.onChange(b.name, c.from, c.to)
		}
	}
}

func isNeutral(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, entity.ErrRateLimitTimeout) ||
		errors.Is(err, entity.ErrRateLimitDeadline)
}

// State returns the current state, moving an expired open circuit to half_open.
func (b *Breaker) State() entity.BreakerState {
	return b.Stats().State
}

// Stats returns a snapshot of the breaker.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	c, changed := b.refresh(b.clock.Now())
	s := Stats{
		State:               b.state,
		ConsecutiveFailures: len(b.streak),
		LastStateChange:     b.lastChange,
	}
	if b.state == entity.BreakerOpen {
		s.OpenUntil = b.openUntil
	}
	b.mu.Unlock()

	if changed {
		b.notify([]transition{c})
	}
	return s
}
