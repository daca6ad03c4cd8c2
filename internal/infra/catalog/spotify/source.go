package spotify

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/provider"
)

// Name is the provider name of this source.
const Name = "spotify"

const searchLimit = 5

var pitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Source implements provider.Source.
type Source struct {
	client Client
}

// NewSource creates a Spotify source.
func NewSource(client Client) *Source {
	return &Source{client: client}
}

// Name implements provider.Source.
func (s *Source) Name() string { return Name }

// Lookup searches for the track and, when found, fetches its audio features.
func (s *Source) Lookup(ctx context.Context, q provider.Query) ([]entity.FieldResult, error) {
	tracks, err := s.client.SearchTracks(ctx, searchQuery(q), searchLimit)
	if err != nil {
		return nil, fmt.Errorf("spotify search: %w", err)
	}

	candidates := make([]provider.Candidate, len(tracks))
	for i, t := range tracks {
		candidates[i] = provider.Candidate{Artist: artistNames(t), Title: t.Name, ISRC: t.ExternalIDs.ISRC}
	}
	best, score := provider.Best(q, candidates)
	if best < 0 {
		return nil, nil
	}
	track := tracks[best]

	features, err := s.client.AudioFeatures(ctx, track.ID)
	if err != nil {
		return nil, fmt.Errorf("spotify audio features: %w", err)
	}
	return Normalize(track, features, score, time.Now()), nil
}

func searchQuery(q provider.Query) string {
	if q.ISRC != "" {
		return "isrc:" + q.ISRC
	}
	var parts []string
	if q.Title != "" {
		parts = append(parts, "track:"+q.Title)
	}
	if q.Artist != "" {
		parts = append(parts, "artist:"+q.Artist)
	}
	return strings.Join(parts, " ")
}

func artistNames(t Track) string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, "; ")
}

// Normalize converts a matched track into field results. features may be nil.
func Normalize(t Track, features *AudioFeatures, confidence float64, now time.Time) []entity.FieldResult {
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

	add(entity.FieldISRC, strings.ToUpper(t.ExternalIDs.ISRC))
	add(entity.FieldArtists, artistNames(t))
	if features != nil {
		if features.Tempo > 0 {
			add(entity.FieldBPM, strconv.FormatFloat(math.Round(features.Tempo*10)/10, 'f', -1, 64))
		}
		add(entity.FieldKey, KeyName(features.Key, features.Mode))
	}
	return out
}

// KeyName renders a pitch class and mode, e.g. KeyName(9, 0) == "A minor".
// Unknown keys give "".
func KeyName(key, mode int) string {
	if key < 0 || key >= len(pitchClasses) {
		return ""
	}
	if mode == 1 {
		return pitchClasses[key] + " major"
	}
	return pitchClasses[key] + " minor"
}
