// Package ratelimit caps the outbound call rate of each provider.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"track-enricher/internal/domain/entity"
)

// Settings is the request budget of one provider.
type Settings struct {
	Enabled bool
	// Budget is the number of requests allowed per Window. Zero disables the provider.
	Budget int
	Window time.Duration
	// WaitTimeout bounds how long Acquire may block.
	WaitTimeout time.Duration
}

// Utilization reports how much of the budget is in use.
type Utilization struct {
	Budget    int           `json:"budget"`
	Window    time.Duration `json:"window"`
	Available float64       `json:"available"`
	InUse     float64       `json:"in_use"`
}

// Limiter gates calls to one provider. Tokens replenish on their own
// schedule, so there is nothing to release after a call.
type Limiter interface {
	// Acquire blocks until a token is available. It returns
	// entity.ErrProviderDisabled for a disabled provider,
	// entity.ErrRateLimitTimeout when no token comes within WaitTimeout and
	// entity.ErrRateLimitDeadline when ctx's deadline is the nearer bound.
	Acquire(ctx context.Context) error
	Utilization() Utilization
	Update(Settings)
}

// Local is an in-process token bucket: Budget tokens, one replenished
// every Window/Budget.
type Local struct {
	mu       sync.RWMutex
	settings Settings
	limiter  *rate.Limiter
}

// NewLocal creates a token bucket that starts full.
func NewLocal(s Settings) *Local {
	l := &Local{settings: s}
	l.limiter = rate.NewLimiter(limitOf(s), burstOf(s))
	return l
}

func limitOf(s Settings) rate.Limit {
	if s.Budget <= 0 || s.Window <= 0 {
		return 0
	}
	return rate.Every(s.Window / time.Duration(s.Budget))
}

func burstOf(s Settings) int {
	if s.Budget <= 0 {
		return 0
	}
	return s.Budget
}

// Acquire waits for a token without busy-waiting.
func (l *Local) Acquire(ctx context.Context) error {
	l.mu.RLock()
	s := l.settings
	lim := l.limiter
	l.mu.RUnlock()

	if !s.Enabled || s.Budget <= 0 {
		return entity.ErrProviderDisabled
	}

	waitCtx := ctx
	if s.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.WaitTimeout)
		defer cancel()
	}

	// Wait fails at once when the next token falls after the wait deadline.
	if err := lim.Wait(waitCtx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if callerBound(ctx, s.WaitTimeout) {
			return entity.ErrRateLimitDeadline
		}
		return fmt.Errorf("%w: no token within %s", entity.ErrRateLimitTimeout, s.WaitTimeout)
	}
	return nil
}

// callerBound reports whether ctx's deadline comes before the wait timeout.
func callerBound(ctx context.Context, waitTimeout time.Duration) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return false
	}
	return waitTimeout <= 0 || time.Until(deadline) < waitTimeout
}

// Utilization reports the tokens currently available.
func (l *Local) Utilization() Utilization {
	l.mu.RLock()
	s := l.settings
	lim := l.limiter
	l.mu.RUnlock()

	u := Utilization{Budget: s.Budget, Window: s.Window}
	if s.Budget <= 0 {
		return u
	}
	available := lim.Tokens()
	if available < 0 {
		available = 0
	}
	u.Available = available
	u.InUse = float64(s.Budget) - available
	return u
}

// Update applies new settings without refilling the bucket.
func (l *Local) Update(s Settings) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s.Budget != l.settings.Budget || s.Window != l.settings.Window {
		l.limiter.SetLimit(limitOf(s))
		l.limiter.SetBurst(burstOf(s))
	}
	l.settings = s
}
