// Package redis shares provider limits, breaker trips and dead letters
// between service instances.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string
	Password string
	// KeyPrefix namespaces every key, e.g. "enricher".
	KeyPrefix string
}

// Client wraps a go-redis client with key helpers.
type Client struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewClient parses cfg.URL, connects and pings the server.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return Wrap(rdb, cfg.KeyPrefix), nil
}

// Wrap uses an existing client.
func Wrap(rdb redis.UniversalClient, prefix string) *Client {
	if prefix == "" {
		prefix = "enricher"
	}
	return &Client{rdb: rdb, prefix: prefix}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key helpers

func (c *Client) messageKey(id string) string {
	return fmt.Sprintf("%s:dlq:msg:%s", c.prefix, id)
}

func (c *Client) indexKey() string {
	return c.prefix + ":dlq:index"
}

func (c *Client) windowKey(provider string, window int64) string {
	return fmt.Sprintf("%s:ratelimit:%s:%d", c.prefix, provider, window)
}

func (c *Client) tripKey(provider string) string {
	return fmt.Sprintf("%s:breaker:%s", c.prefix, provider)
}
