package repository

import (
	"context"
	"time"

	"track-enricher/internal/domain/entity"
)

// DeadLetterFilter narrows List and Count. Zero values match everything.
type DeadLetterFilter struct {
	Class    entity.ErrorClass
	Provider string
	Field    string
	Status   entity.MessageStatus
	From     *time.Time
	To       *time.Time
	// MaxReplayCount, when positive, keeps messages replayed fewer times than this.
	MaxReplayCount int
	// ClaimableBefore, when set, keeps pending messages and replaying messages
	// last updated before it, i.e. those Claim would hand out.
	ClaimableBefore *time.Time
}

// Page is 1-based pagination.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// DeadLetterStats aggregates messages by classification and implicated provider.
type DeadLetterStats struct {
	Total      int64                       `json:"total"`
	ByClass    map[entity.ErrorClass]int64 `json:"by_class"`
	ByProvider map[string]int64            `json:"by_provider"`
	Oldest     *time.Time                  `json:"oldest,omitempty"`
}

// NewDeadLetterStats returns stats with initialized maps.
func NewDeadLetterStats() *DeadLetterStats {
	return &DeadLetterStats{
		ByClass:    make(map[entity.ErrorClass]int64),
		ByProvider: make(map[string]int64),
	}
}

// DeadLetterRepository persists dead-letter messages keyed by record id.
//
// Upsert replaces an existing message with the same id (last write wins).
// Get, Claim and Delete return entity.ErrNotFound for unknown ids.
// List orders by enqueue time, oldest first.
//
// Claim atomically moves a message to replaying and stamps UpdatedAt with now.
// It succeeds for a pending message, or for a replaying one last updated
// before staleBefore (an abandoned replay). Otherwise it returns
// entity.ErrAlreadyClaimed.
type DeadLetterRepository interface {
	Upsert(ctx context.Context, msg *entity.DeadLetterMessage) error
	Get(ctx context.Context, id string) (*entity.DeadLetterMessage, error)
	Claim(ctx context.Context, id string, now, staleBefore time.Time) (*entity.DeadLetterMessage, error)
	List(ctx context.Context, filter DeadLetterFilter, page Page) ([]*entity.DeadLetterMessage, error)
	Count(ctx context.Context, filter DeadLetterFilter) (int64, error)
	Stats(ctx context.Context) (*DeadLetterStats, error)
	Delete(ctx context.Context, id string) error
}

// Claimable reports whether Claim would hand out msg at a time whose
// staleness cutoff is staleBefore.
func Claimable(msg *entity.DeadLetterMessage, staleBefore time.Time) bool {
	switch msg.Status {
	case entity.MessagePending, "":
		return true
	case entity.MessageReplaying:
		return msg.UpdatedAt.Before(staleBefore)
	default:
		return false
	}
}

// Add counts msg into the stats.
func (s *DeadLetterStats) Add(msg *entity.DeadLetterMessage) {
	s.Total++
	s.ByClass[msg.Class]++
	if msg.Provider != "" {
		s.ByProvider[msg.Provider]++
	}
	if s.Oldest == nil || msg.EnqueuedAt.Before(*s.Oldest) {
		t := msg.EnqueuedAt
		s.Oldest = &t
	}
}
