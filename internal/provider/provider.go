// Package provider wraps upstream metadata sources behind the rate limiter,
// circuit breaker and retry handler of their provider.
//
// A Source only knows how to talk to its upstream and normalize the answer.
// An Adapter adds the resilience gates, and the Registry owns one Adapter per
// configured provider together with its shared State.
package provider

import (
	"context"
	"fmt"

	"track-enricher/internal/domain/entity"
)

// Query is the seed data a source searches with.
type Query struct {
	Artist string
	Title  string
	ISRC   string
}

// QueryOf builds the query for req.
func QueryOf(req entity.EnrichmentRequest) Query {
	return Query{Artist: req.Artist, Title: req.Title, ISRC: req.ISRC}
}

// Source is one upstream metadata catalog.
//
// Lookup returns every field the source could resolve for q. A source that
// found nothing returns (nil, nil); transport and upstream errors are
// returned as is and classified by the adapter.
type Source interface {
	Name() string
	Lookup(ctx context.Context, q Query) ([]entity.FieldResult, error)
}

// LookupError is the failure of one gated lookup.
type LookupError struct {
	Provider string
	Class    entity.ErrorClass
	// Calls is the number of times the source was actually invoked.
	Calls int
	Err   error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Class, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// ErrorClass implements entity.Classified.
func (e *LookupError) ErrorClass() entity.ErrorClass { return e.Class }
