package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/repository"
)

const deadLetterColumns = `id, request, classification, provider, field, error,
       attempts, status, replay_count, enqueued_at, updated_at`

type DeadLetterRepo struct {
	db           *sql.DB
	queryBuilder *DeadLetterQueryBuilder
}

func NewDeadLetterRepo(db *sql.DB) repository.DeadLetterRepository {
	return &DeadLetterRepo{
		db:           db,
		queryBuilder: NewDeadLetterQueryBuilder(),
	}
}

// Upsert inserts msg or replaces the row with the same id.
func (repo *DeadLetterRepo) Upsert(ctx context.Context, msg *entity.DeadLetterMessage) error {
	request, err := json.Marshal(msg.Request)
	if err != nil {
		return fmt.Errorf("Upsert: Marshal request: %w", err)
	}
	attempts, err := json.Marshal(msg.Attempts)
	if err != nil {
		return fmt.Errorf("Upsert: Marshal attempts: %w", err)
	}

	const query = `
INSERT INTO dead_letters (id, request, classification, provider, field, error,
                          attempts, status, replay_count, enqueued_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
       request        = EXCLUDED.request,
       classification = EXCLUDED.classification,
       provider       = EXCLUDED.provider,
       field          = EXCLUDED.field,
       error          = EXCLUDED.error,
       attempts       = EXCLUDED.attempts,
       status         = EXCLUDED.status,
       replay_count   = EXCLUDED.replay_count,
       enqueued_at    = EXCLUDED.enqueued_at,
       updated_at     = EXCLUDED.updated_at`
	_, err = repo.db.ExecContext(ctx, query,
		msg.ID, string(request), string(msg.Class), msg.Provider, msg.Field, msg.Error,
		string(attempts), string(msg.Status), msg.ReplayCount, msg.EnqueuedAt, msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

func (repo *DeadLetterRepo) Get(ctx context.Context, id string) (*entity.DeadLetterMessage, error) {
	query := `SELECT ` + deadLetterColumns + `
FROM dead_letters
WHERE id = $1
LIMIT 1`
	msg, err := scanDeadLetter(repo.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return msg, nil
}

// Claim flips the row to replaying in one conditional UPDATE, so concurrent
// replayers across processes see at most one winner.
func (repo *DeadLetterRepo) Claim(ctx context.Context, id string, now, staleBefore time.Time) (*entity.DeadLetterMessage, error) {
	query := `UPDATE dead_letters
SET status = 'replaying', updated_at = $2
WHERE id = $1
  AND (status = 'pending' OR (status = 'replaying' AND updated_at < $3))
RETURNING ` + deadLetterColumns
	msg, err := scanDeadLetter(repo.db.QueryRowContext(ctx, query, id, now, staleBefore))
	if err == nil {
		return msg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Claim: %w", err)
	}

	var exists bool
	if err := repo.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM dead_letters WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("Claim: %w", err)
	}
	if !exists {
		return nil, entity.ErrNotFound
	}
	return nil, entity.ErrAlreadyClaimed
}

func (repo *DeadLetterRepo) List(ctx context.Context, filter repository.DeadLetterFilter, page repository.Page) ([]*entity.DeadLetterMessage, error) {
	where, args := repo.queryBuilder.BuildWhereClause(filter)
	query := `SELECT ` + deadLetterColumns + `
FROM dead_letters ` + where + `
ORDER BY enqueued_at ASC, id ASC`
	if page.Limit > 0 {
		args = append(args, page.Limit, page.Offset())
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	msgs := make([]*entity.DeadLetterMessage, 0)
	for rows.Next() {
		msg, err := scanDeadLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("List: Scan: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return msgs, nil
}

func (repo *DeadLetterRepo) Count(ctx context.Context, filter repository.DeadLetterFilter) (int64, error) {
	where, args := repo.queryBuilder.BuildWhereClause(filter)
	query := `SELECT COUNT(*) FROM dead_letters ` + where

	var count int64
	if err := repo.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return count, nil
}

func (repo *DeadLetterRepo) Stats(ctx context.Context) (*repository.DeadLetterStats, error) {
	stats := repository.NewDeadLetterStats()

	var oldest sql.NullTime
	err := repo.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(enqueued_at) FROM dead_letters`,
	).Scan(&stats.Total, &oldest)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	if oldest.Valid {
		t := oldest.Time
		stats.Oldest = &t
	}

	rows, err := repo.db.QueryContext(ctx, `
SELECT classification, provider, COUNT(*)
FROM dead_letters
GROUP BY classification, provider`)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			class    string
			provider string
			n        int64
		)
		if err := rows.Scan(&class, &provider, &n); err != nil {
			return nil, fmt.Errorf("Stats: Scan: %w", err)
		}
		stats.ByClass[entity.ErrorClass(class)] += n
		if provider != "" {
			stats.ByProvider[provider] += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	return stats, nil
}

func (repo *DeadLetterRepo) Delete(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: RowsAffected: %w", err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeadLetter(row rowScanner) (*entity.DeadLetterMessage, error) {
	var (
		msg      entity.DeadLetterMessage
		request  []byte
		attempts []byte
		class    string
		status   string
		enqueued time.Time
		updated  time.Time
	)
	if err := row.Scan(
		&msg.ID, &request, &class, &msg.Provider, &msg.Field, &msg.Error,
		&attempts, &status, &msg.ReplayCount, &enqueued, &updated,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(request, &msg.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if len(attempts) > 0 {
		if err := json.Unmarshal(attempts, &msg.Attempts); err != nil {
			return nil, fmt.Errorf("decode attempts: %w", err)
		}
	}
	msg.Class = entity.ErrorClass(class)
	msg.Status = entity.MessageStatus(status)
	msg.EnqueuedAt = enqueued
	msg.UpdatedAt = updated
	return &msg, nil
}
