package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/provider"
	"track-enricher/internal/resilience/retry"
)

// Name is the provider name of this source.
const Name = "llm"

const promptTemplate = `You label music tracks with a single broad genre.
Track: %q by %q.
Answer with JSON only: {"genre": "<genre or empty if unknown>", "confidence": <0.0-1.0>}`

// Source implements provider.Source for the genre field.
type Source struct {
	completer     Completer
	maxConfidence float64
}

// NewSource creates an LLM source whose confidence never exceeds maxConfidence.
func NewSource(c Completer, maxConfidence float64) *Source {
	return &Source{completer: c, maxConfidence: maxConfidence}
}

// Name implements provider.Source.
func (s *Source) Name() string { return Name }

// Lookup implements provider.Source.
func (s *Source) Lookup(ctx context.Context, q provider.Query) ([]entity.FieldResult, error) {
	if q.Title == "" || q.Artist == "" {
		return nil, nil
	}
	answer, err := s.completer.Complete(ctx, fmt.Sprintf(promptTemplate, q.Title, q.Artist))
	if err != nil {
		return nil, err
	}

	a, err := ParseAnswer(answer)
	if err != nil {
		return nil, err
	}
	if a.Genre == "" || a.Confidence <= 0 {
		return nil, nil
	}

	confidence := a.Confidence
	if confidence > s.maxConfidence {
		confidence = s.maxConfidence
	}
	return []entity.FieldResult{{
		Field:      entity.FieldGenre,
		Value:      a.Genre,
		Provider:   Name,
		Confidence: confidence,
		ObservedAt: time.Now(),
	}}, nil
}

// Answer is the model's JSON reply.
type Answer struct {
	Genre      string  `json:"genre"`
	Confidence float64 `json:"confidence"`
}

// ParseAnswer extracts the JSON object from a reply, tolerating code fences
// and surrounding prose.
func ParseAnswer(reply string) (Answer, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return Answer{}, fmt.Errorf("%w: no JSON object in model reply", retry.ErrMalformedResponse)
	}

	var a Answer
	if err := json.Unmarshal([]byte(reply[start:end+1]), &a); err != nil {
		return Answer{}, fmt.Errorf("%w: %v", retry.ErrMalformedResponse, err)
	}
	a.Genre = strings.TrimSpace(a.Genre)
	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}
	return a, nil
}
