package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/repository"
)

// scanBatch is the number of messages fetched per MGET.
const scanBatch = 200

// DeadLetterRepo stores each message as a JSON string and keeps a sorted
// set of ids scored by enqueue time. Filters are applied client side.
type DeadLetterRepo struct {
	c *Client
}

func NewDeadLetterRepo(c *Client) repository.DeadLetterRepository {
	return &DeadLetterRepo{c: c}
}

// Upsert writes the message and indexes it by enqueue time in milliseconds.
func (repo *DeadLetterRepo) Upsert(ctx context.Context, msg *entity.DeadLetterMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("Upsert: Marshal: %w", err)
	}

	pipe := repo.c.rdb.TxPipeline()
	pipe.Set(ctx, repo.c.messageKey(msg.ID), data, 0)
	pipe.ZAdd(ctx, repo.c.indexKey(), redis.Z{
		Score:  float64(msg.EnqueuedAt.UnixMilli()),
		Member: msg.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

func (repo *DeadLetterRepo) Get(ctx context.Context, id string) (*entity.DeadLetterMessage, error) {
	data, err := repo.c.rdb.Get(ctx, repo.c.messageKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	msg, err := decodeMessage(data)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return msg, nil
}

// Claim reads and rewrites the message under WATCH, so a concurrent writer
// aborts the transaction and the claim is refused.
func (repo *DeadLetterRepo) Claim(ctx context.Context, id string, now, staleBefore time.Time) (*entity.DeadLetterMessage, error) {
	key := repo.c.messageKey(id)
	var claimed *entity.DeadLetterMessage

	err := repo.c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return entity.ErrNotFound
		}
		if err != nil {
			return err
		}
		msg, err := decodeMessage(data)
		if err != nil {
			return err
		}
		if !repository.Claimable(msg, staleBefore) {
			return entity.ErrAlreadyClaimed
		}
		msg.Status = entity.MessageReplaying
		msg.UpdatedAt = now
		if data, err = json.Marshal(msg); err != nil {
			return err
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		}); err != nil {
			return err
		}
		claimed = msg
		return nil
	}, key)

	switch {
	case err == nil:
		return claimed, nil
	case errors.Is(err, entity.ErrNotFound), errors.Is(err, entity.ErrAlreadyClaimed):
		return nil, err
	case errors.Is(err, redis.TxFailedErr):
		return nil, entity.ErrAlreadyClaimed
	default:
		return nil, fmt.Errorf("Claim: %w", err)
	}
}

func (repo *DeadLetterRepo) List(ctx context.Context, filter repository.DeadLetterFilter, page repository.Page) ([]*entity.DeadLetterMessage, error) {
	matched, err := repo.scan(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	start := page.Offset()
	if start >= len(matched) {
		return []*entity.DeadLetterMessage{}, nil
	}
	end := len(matched)
	if page.Limit > 0 && start+page.Limit < end {
		end = start + page.Limit
	}
	return matched[start:end], nil
}

func (repo *DeadLetterRepo) Count(ctx context.Context, filter repository.DeadLetterFilter) (int64, error) {
	if filter == (repository.DeadLetterFilter{}) {
		n, err := repo.c.rdb.ZCard(ctx, repo.c.indexKey()).Result()
		if err != nil {
			return 0, fmt.Errorf("Count: %w", err)
		}
		return n, nil
	}
	matched, err := repo.scan(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return int64(len(matched)), nil
}

func (repo *DeadLetterRepo) Stats(ctx context.Context) (*repository.DeadLetterStats, error) {
	all, err := repo.scan(ctx, repository.DeadLetterFilter{})
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	stats := repository.NewDeadLetterStats()
	for _, m := range all {
		stats.Add(m)
	}
	return stats, nil
}

func (repo *DeadLetterRepo) Delete(ctx context.Context, id string) error {
	pipe := repo.c.rdb.TxPipeline()
	del := pipe.Del(ctx, repo.c.messageKey(id))
	pipe.ZRem(ctx, repo.c.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if del.Val() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// scan walks the index oldest first and returns the messages passing filter.
func (repo *DeadLetterRepo) scan(ctx context.Context, filter repository.DeadLetterFilter) ([]*entity.DeadLetterMessage, error) {
	min, max := "-inf", "+inf"
	if filter.From != nil {
		min = strconv.FormatInt(filter.From.UnixMilli(), 10)
	}
	if filter.To != nil {
		max = strconv.FormatInt(filter.To.UnixMilli(), 10)
	}
	index, err := repo.c.rdb.ZRangeByScore(ctx, repo.c.indexKey(), &redis.ZRangeBy{
		Min: min,
		Max: max,
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*entity.DeadLetterMessage, 0, len(index))
	for start := 0; start < len(index); start += scanBatch {
		end := start + scanBatch
		if end > len(index) {
			end = len(index)
		}
		batch := index[start:end]

		keys := make([]string, len(batch))
		for i, id := range batch {
			keys[i] = repo.c.messageKey(id)
		}
		values, err := repo.c.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				// deleted between ZRANGE and MGET
				continue
			}
			msg, err := decodeMessage([]byte(s))
			if err != nil {
				return nil, err
			}
			if filter.Matches(msg) {
				out = append(out, msg)
			}
		}
	}
	return out, nil
}

func decodeMessage(data []byte) (*entity.DeadLetterMessage, error) {
	var msg entity.DeadLetterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode dead letter: %w", err)
	}
	return &msg, nil
}
