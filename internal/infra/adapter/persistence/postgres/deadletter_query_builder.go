// Package postgres provides PostgreSQL implementations of repository interfaces.
package postgres

import (
	"fmt"
	"strings"

	"track-enricher/internal/repository"
)

// DeadLetterQueryBuilder builds WHERE clauses for dead-letter queries.
// List and Count share it so both see the same rows.
type DeadLetterQueryBuilder struct{}

// NewDeadLetterQueryBuilder creates a new query builder instance.
func NewDeadLetterQueryBuilder() *DeadLetterQueryBuilder {
	return &DeadLetterQueryBuilder{}
}

// BuildWhereClause returns the WHERE clause for filter with $N placeholders
// and its arguments. It returns an empty clause when nothing is filtered.
func (qb *DeadLetterQueryBuilder) BuildWhereClause(filter repository.DeadLetterFilter) (clause string, args []interface{}) {
	var conditions []string
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.Class != "" {
		add("classification = $%d", string(filter.Class))
	}
	if filter.Provider != "" {
		add("provider = $%d", filter.Provider)
	}
	if filter.Field != "" {
		add("field = $%d", filter.Field)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.From != nil {
		add("enqueued_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("enqueued_at <= $%d", *filter.To)
	}
	if filter.MaxReplayCount > 0 {
		add("replay_count < $%d", filter.MaxReplayCount)
	}
	if filter.ClaimableBefore != nil {
		add("(status = 'pending' OR (status = 'replaying' AND updated_at < $%d))", *filter.ClaimableBefore)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
