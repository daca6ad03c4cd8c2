// Package musicbrainz resolves ISRC, artist credits and genre from the
// MusicBrainz web service.
package musicbrainz

import (
	"context"
	"net/url"
	"strconv"

	"track-enricher/internal/infra/catalog/httpjson"
)

// DefaultBaseURL is the MusicBrainz web service root.
const DefaultBaseURL = "https://musicbrainz.org/ws/2"

// Recording is a recording search hit.
type Recording struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
	Title string `json:"title"`
	// ArtistCredit lists the credited artists in order.
	ArtistCredit []struct {
		Name string `json:"name"`
	} `json:"artist-credit"`
	ISRCs []string `json:"isrcs"`
	Tags  []Tag    `json:"tags"`
}

// Tag is a folksonomy tag with its vote count.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Client searches recordings with a Lucene query.
type Client interface {
	SearchRecordings(ctx context.Context, query string, limit int) ([]Recording, error)
}

// HTTPClient talks to the MusicBrainz JSON API.
type HTTPClient struct {
	api *httpjson.Client
}

// NewHTTPClient creates a client for baseURL.
func NewHTTPClient(baseURL string, opts ...httpjson.Option) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{api: httpjson.New(baseURL, opts...)}
}

// SearchRecordings implements Client.
func (c *HTTPClient) SearchRecordings(ctx context.Context, query string, limit int) ([]Recording, error) {
	var resp struct {
		Recordings []Recording `json:"recordings"`
	}
	q := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"limit": {strconv.Itoa(limit)},
	}
	if err := c.api.GetJSON(ctx, "/recording", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Recordings, nil
}
