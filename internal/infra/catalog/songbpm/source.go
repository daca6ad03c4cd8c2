package songbpm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/provider"
)

// Name is the provider name of this source.
const Name = "songbpm"

// scraped values are less reliable than catalog metadata
const confidenceScale = 0.9

var (
	bpmPattern = regexp.MustCompile(`\d+(\.\d+)?`)
	keyPattern = regexp.MustCompile(`(?i)^([A-G])\s*(#|♯|b|♭)?\s*(major|minor|maj|min|m)?$`)
)

// Source implements provider.Source.
type Source struct {
	client Client
}

// NewSource creates a song BPM source.
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
	rows, err := s.client.Search(ctx, q.Artist, q.Title)
	if err != nil {
		return nil, fmt.Errorf("songbpm search: %w", err)
	}

	candidates := make([]provider.Candidate, len(rows))
	for i, r := range rows {
		candidates[i] = provider.Candidate{Artist: r.Artist, Title: r.Title}
	}
	best, score := provider.Best(q, candidates)
	if best < 0 {
		return nil, nil
	}
	return Normalize(rows[best], score*confidenceScale, time.Now()), nil
}

// Normalize converts a matched row into field results.
func Normalize(r Row, confidence float64, now time.Time) []entity.FieldResult {
	var out []entity.FieldResult
	if bpm := ParseBPM(r.BPM); bpm != "" {
		out = append(out, entity.FieldResult{Field: entity.FieldBPM, Value: bpm, Provider: Name, Confidence: confidence, ObservedAt: now})
	}
	if key := ParseKey(r.Key); key != "" {
		out = append(out, entity.FieldResult{Field: entity.FieldKey, Value: key, Provider: Name, Confidence: confidence, ObservedAt: now})
	}
	return out
}

// ParseBPM extracts the first number, e.g. "128 BPM" gives "128".
func ParseBPM(s string) string {
	m := bpmPattern.FindString(s)
	if m == "" {
		return ""
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v <= 0 || v > 400 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseKey renders keys like "F#m", "Bb major" or "A" as "F# minor",
// "A# major" and "A major", matching the other sources.
func ParseKey(s string) string {
	m := keyPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ""
	}
	note := strings.ToUpper(m[1])
	switch m[2] {
	case "#", "♯":
		note += "#"
	case "b", "B", "♭":
		note = flatToSharp(note)
	}
	mode := "major"
	switch strings.ToLower(m[3]) {
	case "minor", "min", "m":
		mode = "minor"
	}
	return note + " " + mode
}

func flatToSharp(note string) string {
	switch note {
	case "C":
		return "B"
	case "D":
		return "C#"
	case "E":
		return "D#"
	case "F":
		return "E"
	case "G":
		return "F#"
	case "A":
		return "G#"
	case "B":
		return "A#"
	}
	return note
}
