// Package discogs resolves genre and style from the Discogs database.
package discogs

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"track-enricher/internal/infra/catalog/httpjson"
)

// DefaultBaseURL is the Discogs API root.
const DefaultBaseURL = "https://api.discogs.com"

// Result is a database search hit. Title has the form "Artist - Title".
type Result struct {
	ID    int      `json:"id"`
	Title string   `json:"title"`
	Genre []string `json:"genre"`
	Style []string `json:"style"`
	Year  string   `json:"year"`
}

// SearchParams narrows a database search.
type SearchParams struct {
	Artist string
	Track  string
	Limit  int
}

// Client searches the Discogs database.
type Client interface {
	Search(ctx context.Context, p SearchParams) ([]Result, error)
}

// HTTPClient talks to the Discogs API with a personal access token.
type HTTPClient struct {
	api   *httpjson.Client
	token string
}

// NewHTTPClient creates a client for baseURL.
func NewHTTPClient(baseURL, token string, opts ...httpjson.Option) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{api: httpjson.New(baseURL, opts...), token: token}
}

// Search implements Client.
func (c *HTTPClient) Search(ctx context.Context, p SearchParams) ([]Result, error) {
	q := url.Values{"type": {"release"}}
	if p.Artist != "" {
		q.Set("artist", p.Artist)
	}
	if p.Track != "" {
		q.Set("track", p.Track)
	}
	if p.Limit > 0 {
		q.Set("per_page", strconv.Itoa(p.Limit))
	}

	var header http.Header
	if c.token != "" {
		header = http.Header{"Authorization": {"Discogs token=" + c.token}}
	}

	var resp struct {
		Results []Result `json:"results"`
	}
	if err := c.api.GetJSON(ctx, "/database/search", q, header, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}
