package musicbrainz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/provider"
)

// Name is the provider name of this source.
const Name = "musicbrainz"

const searchLimit = 5

// Source implements provider.Source.
type Source struct {
	client Client
}

// NewSource creates a MusicBrainz source.
func NewSource(client Client) *Source {
	return &Source{client: client}
}

// Name implements provider.Source.
func (s *Source) Name() string { return Name }

// Lookup implements provider.Source.
func (s *Source) Lookup(ctx context.Context, q provider.Query) ([]entity.FieldResult, error) {
	recs, err := s.client.SearchRecordings(ctx, luceneQuery(q), searchLimit)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz search: %w", err)
	}

	best, bestScore := -1, 0.0
	for i, r := range recs {
		c := provider.Candidate{Artist: credit(r), Title: r.Title}
		if len(r.ISRCs) > 0 {
			c.ISRC = r.ISRCs[0]
		}
		for _, isrc := range r.ISRCs {
			if strings.EqualFold(isrc, q.ISRC) {
				c.ISRC = isrc
			}
		}
		if score := Confidence(q, c, r.Score); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil, nil
	}
	return Normalize(recs[best], bestScore, time.Now()), nil
}

// Confidence weighs the title/artist match by the MusicBrainz search score.
func Confidence(q provider.Query, c provider.Candidate, score int) float64 {
	m := provider.Match(q, c)
	if score <= 0 || score > 100 {
		return m
	}
	return m * float64(score) / 100
}

func luceneQuery(q provider.Query) string {
	if q.ISRC != "" {
		return "isrc:" + q.ISRC
	}
	var parts []string
	if q.Title != "" {
		parts = append(parts, fmt.Sprintf("recording:%q", q.Title))
	}
	if q.Artist != "" {
		parts = append(parts, fmt.Sprintf("artist:%q", q.Artist))
	}
	return strings.Join(parts, " AND ")
}

func credit(r Recording) string {
	names := make([]string, 0, len(r.ArtistCredit))
	for _, a := range r.ArtistCredit {
		names = append(names, a.Name)
	}
	return strings.Join(names, "; ")
}

// TopTag returns the most voted tag name, or "".
func TopTag(tags []Tag) string {
	if len(tags) == 0 {
		return ""
	}
	sorted := append([]Tag(nil), tags...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })
	return sorted[0].Name
}

// Normalize converts a matched recording into field results.
func Normalize(r Recording, confidence float64, now time.Time) []entity.FieldResult {
	var out []entity.FieldResult
	add := func(field, value string) {
		if value == "" {
			return
		}
		out = append(out, entity.FieldResult{
			Field:      field,
			Value:      value,
			Provider:   Name,
			Confidence: confidence,
			ObservedAt: now,
		})
	}

	if len(r.ISRCs) > 0 {
		add(entity.FieldISRC, strings.ToUpper(r.ISRCs[0]))
	}
	add(entity.FieldArtists, credit(r))
	add(entity.FieldGenre, TopTag(r.Tags))
	return out
}
