package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/repository"
)

// Config holds the configuration for a gobreaker-backed circuit breaker.
type Config struct {
	// Name is the circuit breaker name for logging and metrics
	Name string

	// MaxRequests is the maximum number of requests allowed in half-open state
	MaxRequests uint32

	// Interval is the cyclic period of the closed state to clear failure counts
	Interval time.Duration

	// Timeout is how long to wait in open state before trying again
	Timeout time.Duration

	// ConsecutiveFailures trips the circuit
	ConsecutiveFailures uint32
}

// StoreConfig returns configuration for the dead-letter store.
// Opens after 5 consecutive failures, 30 second timeout.
func StoreConfig(name string) Config {
	return Config{
		Name:                name,
		MaxRequests:         3,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// StoreBreaker wraps gobreaker.CircuitBreaker.
type StoreBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// NewStoreBreaker creates a new store breaker with the given configuration.
func NewStoreBreaker(cfg Config) *StoreBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		// a missing row or a rejected message says nothing about store health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, entity.ErrNotFound) ||
				errors.Is(err, entity.ErrAlreadyClaimed) ||
				errors.Is(err, entity.ErrValidationFailed) ||
				errors.Is(err, context.Canceled)
		},
	}

	return &StoreBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Execute runs fn through the circuit breaker.
// If the circuit is open, it returns gobreaker.ErrOpenState immediately.
func (cb *StoreBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

// State returns the current state of the circuit breaker.
func (cb *StoreBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the name of the circuit breaker.
func (cb *StoreBreaker) Name() string {
	return cb.name
}

// GuardedDeadLetters wraps a dead-letter repository with circuit breaker protection.
// A failing database then fails enqueue fast instead of stalling every record.
type GuardedDeadLetters struct {
	cb   *StoreBreaker
	repo repository.DeadLetterRepository
}

// NewGuardedDeadLetters wraps repo with a breaker built from StoreConfig.
func NewGuardedDeadLetters(repo repository.DeadLetterRepository, name string) *GuardedDeadLetters {
	return NewGuardedDeadLettersWithConfig(repo, StoreConfig(name))
}

// NewGuardedDeadLettersWithConfig wraps repo with a breaker built from cfg.
func NewGuardedDeadLettersWithConfig(repo repository.DeadLetterRepository, cfg Config) *GuardedDeadLetters {
	return &GuardedDeadLetters{cb: NewStoreBreaker(cfg), repo: repo}
}

// Breaker exposes the underlying breaker for health reporting.
func (g *GuardedDeadLetters) Breaker() *StoreBreaker {
	return g.cb
}

func (g *GuardedDeadLetters) Upsert(ctx context.Context, msg *entity.DeadLetterMessage) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.repo.Upsert(ctx, msg)
	})
	return err
}

func (g *GuardedDeadLetters) Get(ctx context.Context, id string) (*entity.DeadLetterMessage, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.repo.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return res.(*entity.DeadLetterMessage), nil
}

func (g *GuardedDeadLetters) Claim(ctx context.Context, id string, now, staleBefore time.Time) (*entity.DeadLetterMessage, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.repo.Claim(ctx, id, now, staleBefore)
	})
	if err != nil {
		return nil, err
	}
	return res.(*entity.DeadLetterMessage), nil
}

func (g *GuardedDeadLetters) List(ctx context.Context, filter repository.DeadLetterFilter, page repository.Page) ([]*entity.DeadLetterMessage, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.repo.List(ctx, filter, page)
	})
	if err != nil {
		return nil, err
	}
	return res.([]*entity.DeadLetterMessage), nil
}

func (g *GuardedDeadLetters) Count(ctx context.Context, filter repository.DeadLetterFilter) (int64, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.repo.Count(ctx, filter)
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

func (g *GuardedDeadLetters) Stats(ctx context.Context) (*repository.DeadLetterStats, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.repo.Stats(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.(*repository.DeadLetterStats), nil
}

func (g *GuardedDeadLetters) Delete(ctx context.Context, id string) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.repo.Delete(ctx, id)
	})
	return err
}
