package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/resilience/ratelimit"
)

// WindowLimiter is a fixed-window counter shared by every instance talking
// to the same Redis. Each window gets its own key; a request is admitted
// when its INCR result stays within the budget.
type WindowLimiter struct {
	c        *Client
	provider string
	now      func() time.Time

	mu       sync.RWMutex
	settings ratelimit.Settings
}

var _ ratelimit.Limiter = (*WindowLimiter)(nil)

// NewWindowLimiter creates a shared limiter for provider.
func NewWindowLimiter(c *Client, provider string, s ratelimit.Settings) *WindowLimiter {
	return &WindowLimiter{c: c, provider: provider, settings: s, now: time.Now}
}

// LimiterFactory returns a provider.LimiterFactory-compatible constructor.
func LimiterFactory(c *Client) func(name string, s ratelimit.Settings) ratelimit.Limiter {
	return func(name string, s ratelimit.Settings) ratelimit.Limiter {
		return NewWindowLimiter(c, name, s)
	}
}

// windowOf returns the index of the window containing t and when the next
// one starts.
func windowOf(t time.Time, window time.Duration) (int64, time.Time) {
	idx := t.UnixNano() / int64(window)
	return idx, time.Unix(0, (idx+1)*int64(window))
}

// Acquire takes a slot in the current window or waits for the next one,
// up to WaitTimeout.
func (l *WindowLimiter) Acquire(ctx context.Context) error {
	l.mu.RLock()
	s := l.settings
	l.mu.RUnlock()

	if !s.Enabled || s.Budget <= 0 || s.Window <= 0 {
		return entity.ErrProviderDisabled
	}

	var deadline <-chan time.Time
	if s.WaitTimeout > 0 {
		timer := time.NewTimer(s.WaitTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		idx, next := windowOf(l.now(), s.Window)
		n, err := l.incr(ctx, idx, s.Window)
		if err != nil {
			return err
		}
		if n <= int64(s.Budget) {
			return nil
		}

		wait := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-deadline:
			wait.Stop()
			return fmt.Errorf("%w: waited up to %s", entity.ErrRateLimitTimeout, s.WaitTimeout)
		case <-wait.C:
		}
	}
}

func (l *WindowLimiter) incr(ctx context.Context, idx int64, window time.Duration) (int64, error) {
	key := l.c.windowKey(l.provider, idx)
	pipe := l.c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// keep the key a little past its window so late readers still see it
	pipe.PExpire(ctx, key, 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate limit counter %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Utilization reads the counter of the current window.
func (l *WindowLimiter) Utilization() ratelimit.Utilization {
	l.mu.RLock()
	s := l.settings
	l.mu.RUnlock()

	u := ratelimit.Utilization{Budget: s.Budget, Window: s.Window}
	if s.Budget <= 0 || s.Window <= 0 {
		return u
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	idx, _ := windowOf(l.now(), s.Window)
	used := 0
	v, err := l.c.rdb.Get(ctx, l.c.windowKey(l.provider, idx)).Result()
	switch {
	case err == redis.Nil:
	case err != nil:
		slog.Debug("failed to read rate limit counter",
			slog.String("provider", l.provider), slog.Any("error", err))
	default:
		used, _ = strconv.Atoi(v)
	}
	if used > s.Budget {
		used = s.Budget
	}
	u.InUse = float64(used)
	u.Available = float64(s.Budget - used)
	return u
}

// Update applies new settings from the next Acquire on.
func (l *WindowLimiter) Update(s ratelimit.Settings) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settings = s
}
