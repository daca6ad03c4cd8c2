package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"track-enricher/internal/resilience/circuitbreaker"
)

// TripStore publishes open circuits so every instance backs off together.
type TripStore struct {
	c *Client
}

var _ circuitbreaker.TripStore = (*TripStore)(nil)

func NewTripStore(c *Client) *TripStore {
	return &TripStore{c: c}
}

// Trip records that provider is open until the given time. The key expires
// with the trip.
func (s *TripStore) Trip(ctx context.Context, provider string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	err := s.c.rdb.Set(ctx, s.c.tripKey(provider), strconv.FormatInt(until.UnixMilli(), 10), ttl).Err()
	if err != nil {
		return fmt.Errorf("publish trip %s: %w", provider, err)
	}
	return nil
}

// OpenUntil returns the published open deadline, or the zero time.
func (s *TripStore) OpenUntil(ctx context.Context, provider string) (time.Time, error) {
	v, err := s.c.rdb.Get(ctx, s.c.tripKey(provider)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read trip %s: %w", provider, err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("read trip %s: %w", provider, err)
	}
	return time.UnixMilli(ms), nil
}
