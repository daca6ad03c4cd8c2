// Package songbpm scrapes tempo and key from a song BPM search page.
package songbpm

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"track-enricher/internal/infra/catalog/httpjson"
	"track-enricher/internal/resilience/retry"
)

// DefaultBaseURL is the search site root.
const DefaultBaseURL = "https://songbpm.com"

// Selectors locate the result rows and their cells.
type Selectors struct {
	Row    string
	Title  string
	Artist string
	BPM    string
	Key    string
}

// DefaultSelectors matches the public search page markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Row:    ".song-result",
		Title:  ".song-title",
		Artist: ".song-artist",
		BPM:    ".song-bpm",
		Key:    ".song-key",
	}
}

// Row is one search result.
type Row struct {
	Title  string
	Artist string
	BPM    string
	Key    string
}

// Client searches the site.
type Client interface {
	Search(ctx context.Context, artist, title string) ([]Row, error)
}

// HTTPClient fetches and parses the HTML search page.
type HTTPClient struct {
	web       *httpjson.Client
	selectors Selectors
}

// NewHTTPClient creates a client for baseURL.
func NewHTTPClient(baseURL string, sel Selectors, opts ...httpjson.Option) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{web: httpjson.New(baseURL, opts...), selectors: sel}
}

// Search implements Client.
func (c *HTTPClient) Search(ctx context.Context, artist, title string) ([]Row, error) {
	q := strings.TrimSpace(artist + " " + title)
	body, err := c.web.Get(ctx, "/searches", url.Values{"query": {q}}, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse HTML: %v", retry.ErrMalformedResponse, err)
	}
	return Parse(doc, c.selectors), nil
}

// Parse extracts the result rows of doc. Rows without a title are skipped.
func Parse(doc *goquery.Document, sel Selectors) []Row {
	var rows []Row
	doc.Find(sel.Row).Each(func(_ int, s *goquery.Selection) {
		r := Row{
			Title:  strings.TrimSpace(s.Find(sel.Title).First().Text()),
			Artist: strings.TrimSpace(s.Find(sel.Artist).First().Text()),
			BPM:    strings.TrimSpace(s.Find(sel.BPM).First().Text()),
			Key:    strings.TrimSpace(s.Find(sel.Key).First().Text()),
		}
		if r.Title == "" {
			return
		}
		rows = append(rows, r)
	})
	return rows
}
