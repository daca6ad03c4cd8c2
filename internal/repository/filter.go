package repository

import "track-enricher/internal/domain/entity"

// Matches reports whether msg passes the filter. Stores that cannot push a
// filter down to their query language use it directly.
func (f DeadLetterFilter) Matches(msg *entity.DeadLetterMessage) bool {
	if f.Class != "" && msg.Class != f.Class {
		return false
	}
	if f.Provider != "" && msg.Provider != f.Provider {
		return false
	}
	if f.Field != "" && msg.Field != f.Field {
		return false
	}
	if f.Status != "" && msg.Status != f.Status {
		return false
	}
	if f.From != nil && msg.EnqueuedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && msg.EnqueuedAt.After(*f.To) {
		return false
	}
	if f.MaxReplayCount > 0 && msg.ReplayCount >= f.MaxReplayCount {
		return false
	}
	if f.ClaimableBefore != nil && !Claimable(msg, *f.ClaimableBefore) {
		return false
	}
	return true
}
