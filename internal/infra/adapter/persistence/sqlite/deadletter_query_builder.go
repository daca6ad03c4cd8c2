// Package sqlite provides SQLite implementations of repository interfaces.
package sqlite

import (
	"strings"

	"track-enricher/internal/repository"
)

// DeadLetterQueryBuilder builds WHERE clauses for dead-letter queries.
// Timestamps are compared as unix nanoseconds.
type DeadLetterQueryBuilder struct{}

// NewDeadLetterQueryBuilder creates a new query builder instance.
func NewDeadLetterQueryBuilder() *DeadLetterQueryBuilder {
	return &DeadLetterQueryBuilder{}
}

// BuildWhereClause returns the WHERE clause and arguments for filter, or an
// empty clause when nothing is filtered.
func (qb *DeadLetterQueryBuilder) BuildWhereClause(filter repository.DeadLetterFilter) (clause string, args []interface{}) {
	var conditions []string

	if filter.Class != "" {
		conditions = append(conditions, "classification = ?")
		args = append(args, string(filter.Class))
	}
	if filter.Provider != "" {
		conditions = append(conditions, "provider = ?")
		args = append(args, filter.Provider)
	}
	if filter.Field != "" {
		conditions = append(conditions, "field = ?")
		args = append(args, filter.Field)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.From != nil {
		conditions = append(conditions, "enqueued_at >= ?")
		args = append(args, filter.From.UnixNano())
	}
	if filter.To != nil {
		conditions = append(conditions, "enqueued_at <= ?")
		args = append(args, filter.To.UnixNano())
	}
	if filter.MaxReplayCount > 0 {
		conditions = append(conditions, "replay_count < ?")
		args = append(args, filter.MaxReplayCount)
	}
	if filter.ClaimableBefore != nil {
		conditions = append(conditions, "(status = 'pending' OR (status = 'replaying' AND updated_at < ?))")
		args = append(args, filter.ClaimableBefore.UnixNano())
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
