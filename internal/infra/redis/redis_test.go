package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/repository"
	"track-enricher/internal/resilience/ratelimit"
)

// unreachable returns a client pointing at a closed port.
func unreachable() *Client {
	return Wrap(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}), "test")
}

// live returns a client for REDIS_URL or skips the test.
func live(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}
	c, err := NewClient(context.Background(), Config{URL: url, KeyPrefix: "enricher-test-" + t.Name()})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := c.rdb.Keys(ctx, c.prefix+":*").Result()
		if len(keys) > 0 {
			_ = c.rdb.Del(ctx, keys...).Err()
		}
		_ = c.Close()
	})
	return c
}

func TestKeys(t *testing.T) {
	c := Wrap(redis.NewClient(&redis.Options{}), "")
	assert.Equal(t, "enricher:dlq:msg:track-1", c.messageKey("track-1"))
	assert.Equal(t, "enricher:dlq:index", c.indexKey())
	assert.Equal(t, "enricher:ratelimit:spotify:42", c.windowKey("spotify", 42))
	assert.Equal(t, "enricher:breaker:discogs", c.tripKey("discogs"))
}

func TestWindowOf(t *testing.T) {
	at := time.Unix(100, 500_000_000)
	idx, next := windowOf(at, time.Second)
	assert.EqualValues(t, 100, idx)
	assert.True(t, next.Equal(time.Unix(101, 0)))

	idx, next = windowOf(at, time.Minute)
	assert.EqualValues(t, 1, idx)
	assert.True(t, next.Equal(time.Unix(120, 0)))
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient(context.Background(), Config{URL: "://nope"})
	assert.Error(t, err)
}

func TestWindowLimiter_Disabled(t *testing.T) {
	l := NewWindowLimiter(unreachable(), "spotify", ratelimit.Settings{Enabled: false, Budget: 10, Window: time.Second})
	assert.ErrorIs(t, l.Acquire(context.Background()), entity.ErrProviderDisabled)

	l.Update(ratelimit.Settings{Enabled: true, Budget: 0, Window: time.Second})
	assert.ErrorIs(t, l.Acquire(context.Background()), entity.ErrProviderDisabled)
}

func TestWindowLimiter_BackendDown(t *testing.T) {
	l := NewWindowLimiter(unreachable(), "spotify", ratelimit.Settings{Enabled: true, Budget: 5, Window: time.Second})

	err := l.Acquire(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, entity.ErrRateLimitTimeout))

	u := l.Utilization()
	assert.Equal(t, 5, u.Budget)
	assert.Equal(t, 5.0, u.Available)
}

func TestWindowLimiter_Live(t *testing.T) {
	c := live(t)
	l := NewWindowLimiter(c, "spotify", ratelimit.Settings{
		Enabled: true, Budget: 2, Window: time.Hour, WaitTimeout: 50 * time.Millisecond,
	})
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))
	assert.ErrorIs(t, l.Acquire(ctx), entity.ErrRateLimitTimeout)
	assert.Equal(t, 0.0, l.Utilization().Available)

	// a second instance shares the same budget
	other := NewWindowLimiter(c, "spotify", ratelimit.Settings{
		Enabled: true, Budget: 2, Window: time.Hour, WaitTimeout: 10 * time.Millisecond,
	})
	assert.ErrorIs(t, other.Acquire(ctx), entity.ErrRateLimitTimeout)
}

func TestTripStore_Live(t *testing.T) {
	s := NewTripStore(live(t))
	ctx := context.Background()

	until, err := s.OpenUntil(ctx, "spotify")
	require.NoError(t, err)
	assert.True(t, until.IsZero())

	want := time.Now().Add(time.Minute).Truncate(time.Millisecond)
	require.NoError(t, s.Trip(ctx, "spotify", want))
	got, err := s.OpenUntil(ctx, "spotify")
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	// past deadlines are not published
	require.NoError(t, s.Trip(ctx, "discogs", time.Now().Add(-time.Second)))
	got, err = s.OpenUntil(ctx, "discogs")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestDeadLetterRepo_Live(t *testing.T) {
	repo := NewDeadLetterRepo(live(t))
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"b", "a", "c"} {
		require.NoError(t, repo.Upsert(ctx, &entity.DeadLetterMessage{
			ID:         id,
			Request:    entity.EnrichmentRequest{RecordID: id, Artist: "x", Title: "y"},
			Class:      entity.ClassRetryExhausted,
			Provider:   "spotify",
			Attempts:   []entity.Attempt{{Provider: "spotify", Outcome: entity.OutcomeError}},
			Status:     entity.MessagePending,
			EnqueuedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:  base,
		}))
	}

	n, err := repo.Count(ctx, repository.DeadLetterFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	page, err := repo.List(ctx, repository.DeadLetterFilter{Provider: "spotify"}, repository.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].ID)
	assert.Equal(t, "a", page[1].ID)

	got, err := repo.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, entity.ClassRetryExhausted, got.Class)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.ByProvider["spotify"])

	claimAt := base.Add(time.Hour)
	claimed, err := repo.Claim(ctx, "a", claimAt, claimAt.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, entity.MessageReplaying, claimed.Status)
	_, err = repo.Claim(ctx, "a", claimAt, claimAt.Add(-time.Minute))
	assert.ErrorIs(t, err, entity.ErrAlreadyClaimed)
	_, err = repo.Claim(ctx, "missing", claimAt, claimAt)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "c"))
	assert.ErrorIs(t, repo.Delete(ctx, "c"), entity.ErrNotFound)
	_, err = repo.Get(ctx, "c")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
