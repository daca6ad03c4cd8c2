// Package httpjson is the shared HTTP transport of the catalog sources.
package httpjson

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"track-enricher/internal/resilience/retry"
)

const (
	maxBodySize = 5 * 1024 * 1024 // 5MB
	userAgent   = "TrackEnricher/1.0 (+https://github.com/track-enricher)"
)

// Client performs GET requests against one upstream base URL.
type Client struct {
	http    *http.Client
	baseURL string
	headers http.Header
	now     func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		headers: make(http.Header),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches path with query and returns the body of a 2xx response.
//
// Non-2xx statuses become *retry.HTTPError carrying Retry-After, so the
// retry handler can classify them.
func (c *Client) Get(ctx context.Context, path string, query url.Values, header http.Header) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %s", resp.Status),
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
		}
	}
	return body, nil
}

// GetJSON fetches path and decodes the body into out.
// Undecodable bodies wrap retry.ErrMalformedResponse.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, header http.Header, out any) error {
	body, err := c.Get(ctx, path, query, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", retry.ErrMalformedResponse, err)
	}
	return nil
}
