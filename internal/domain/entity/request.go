package entity

import (
	"fmt"
	"strings"
	"time"
)

// EnrichmentRequest is produced by the ingestion step for one raw scraped
// track record. It is never modified after creation.
type EnrichmentRequest struct {
	RecordID      string    `json:"record_id"`
	Artist        string    `json:"artist"`
	Title         string    `json:"title"`
	ISRC          string    `json:"isrc,omitempty"`
	Fields        []string  `json:"fields"`
	Refresh       bool      `json:"refresh,omitempty"`
	CorrelationID string    `json:"correlation_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate checks the request before any provider is contacted.
// A failure here is classified fatal_unretryable.
func (r *EnrichmentRequest) Validate() error {
	if strings.TrimSpace(r.RecordID) == "" {
		return &ValidationError{Field: "record_id", Message: "record id is required"}
	}
	if strings.TrimSpace(r.Artist) == "" && strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Message: "artist or title seed is required"}
	}
	if len(r.Fields) == 0 {
		return &ValidationError{Field: "fields", Message: "at least one target field is required"}
	}

	seen := make(map[string]bool, len(r.Fields))
	for _, f := range r.Fields {
		if !IsKnownField(f) {
			return &ValidationError{Field: "fields", Message: fmt.Sprintf("unknown field %q", f)}
		}
		if seen[f] {
			return &ValidationError{Field: "fields", Message: fmt.Sprintf("duplicate field %q", f)}
		}
		seen[f] = true
	}
	return nil
}
