// Package spotify resolves ISRC, artist credits, tempo and key from the
// Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"track-enricher/internal/infra/catalog/httpjson"
	"track-enricher/internal/resilience/retry"
)

// DefaultBaseURL is the Spotify Web API root.
const DefaultBaseURL = "https://api.spotify.com/v1"

// Track is a search hit.
type Track struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
}

// AudioFeatures is the analysis of one track.
type AudioFeatures struct {
	Tempo float64 `json:"tempo"`
	// Key is a pitch class, -1 when undetected.
	Key  int `json:"key"`
	Mode int `json:"mode"`
}

// Client is the part of the Spotify API the source uses.
type Client interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]Track, error)
	// AudioFeatures returns (nil, nil) when the track has no analysis.
	AudioFeatures(ctx context.Context, trackID string) (*AudioFeatures, error)
}

// HTTPClient talks to the Spotify Web API with a bearer token.
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

func (c *HTTPClient) auth() http.Header {
	return http.Header{"Authorization": {"Bearer " + c.token}}
}

// SearchTracks runs a track search.
func (c *HTTPClient) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	var resp struct {
		Tracks struct {
			Items []Track `json:"items"`
		} `json:"tracks"`
	}
	q := url.Values{
		"q":     {query},
		"type":  {"track"},
		"limit": {strconv.Itoa(limit)},
	}
	if err := c.api.GetJSON(ctx, "/search", q, c.auth(), &resp); err != nil {
		return nil, err
	}
	return resp.Tracks.Items, nil
}

// AudioFeatures fetches the tempo and key of a track.
func (c *HTTPClient) AudioFeatures(ctx context.Context, trackID string) (*AudioFeatures, error) {
	var f AudioFeatures
	err := c.api.GetJSON(ctx, "/audio-features/"+url.PathEscape(trackID), nil, c.auth(), &f)
	var httpErr *retry.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}
