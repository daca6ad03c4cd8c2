package entity

import (
	"fmt"
	"time"
)

// Field names understood by the pipeline.
const (
	FieldBPM     = "bpm"
	FieldKey     = "key"
	FieldISRC    = "isrc"
	FieldGenre   = "genre"
	FieldArtists = "artists"
)

// KnownFields lists every field a request may target.
var KnownFields = []string{FieldBPM, FieldKey, FieldISRC, FieldGenre, FieldArtists}

// IsKnownField reports whether name is a supported enrichment field.
func IsKnownField(name string) bool {
	for _, f := range KnownFields {
		if f == name {
			return true
		}
	}
	return false
}

// FieldResult is one provider's answer for one field.
// Provider identifies which upstream source produced the value (provenance).
type FieldResult struct {
	Field      string    `json:"field"`
	Value      string    `json:"value"`
	Provider   string    `json:"provider"`
	Confidence float64   `json:"confidence"`
	ObservedAt time.Time `json:"observed_at"`
}

// Validate checks that the result can be merged into a record.
func (r FieldResult) Validate() error {
	if !IsKnownField(r.Field) {
		return &ValidationError{Field: "field", Message: fmt.Sprintf("unknown field %q", r.Field)}
	}
	if r.Provider == "" {
		return &ValidationError{Field: "provider", Message: "provider is required"}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return &ValidationError{Field: "confidence", Message: fmt.Sprintf("confidence %v out of range [0,1]", r.Confidence)}
	}
	return nil
}
