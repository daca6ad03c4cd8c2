package discogs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/provider"
)

// Name is the provider name of this source.
const Name = "discogs"

// Source implements provider.Source. It only answers the genre field.
type Source struct {
	client Client
}

// NewSource creates a Discogs source.
func NewSource(client Client) *Source {
	return &Source{client: client}
}

// Name implements provider.Source.
func (s *Source) Name() string { return Name }

// Lookup implements provider.Source.
func (s *Source) Lookup(ctx context.Context, q provider.Query) ([]entity.FieldResult, error) {
	if q.Title == "" {
		return nil, nil
	}
	results, err := s.client.Search(ctx, SearchParams{Artist: q.Artist, Track: q.Title, Limit: 10})
	if err != nil {
		return nil, fmt.Errorf("discogs search: %w", err)
	}

	var candidates []provider.Candidate
	var usable []Result
	for _, r := range results {
		if len(r.Genre) == 0 {
			continue
		}
		artist, title := SplitTitle(r.Title)
		candidates = append(candidates, provider.Candidate{Artist: artist, Title: title})
		usable = append(usable, r)
	}

	best, score := provider.Best(provider.Query{Artist: q.Artist, Title: q.Title}, candidates)
	if best < 0 {
		return nil, nil
	}
	return Normalize(usable[best], score, time.Now()), nil
}

// SplitTitle splits "Artist - Title" on the first separator.
func SplitTitle(s string) (artist, title string) {
	artist, title, ok := strings.Cut(s, " - ")
	if !ok {
		return "", strings.TrimSpace(s)
	}
	return strings.TrimSpace(artist), strings.TrimSpace(title)
}

// Normalize renders the first genre, followed by the first style when present.
func Normalize(r Result, confidence float64, now time.Time) []entity.FieldResult {
	if len(r.Genre) == 0 {
		return nil
	}
	value := r.Genre[0]
	if len(r.Style) > 0 && r.Style[0] != r.Genre[0] {
		value += "; " + r.Style[0]
	}
	return []entity.FieldResult{{
		Field:      entity.FieldGenre,
		Value:      value,
		Provider:   Name,
		Confidence: confidence,
		ObservedAt: now,
	}}
}
