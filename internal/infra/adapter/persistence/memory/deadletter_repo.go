// Package memory is an in-process dead-letter store for tests, the CLI and
// single-instance deployments without a database.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/repository"
)

// DeadLetterRepo keeps messages in a map keyed by record id.
// Messages are stored as JSON so callers never share memory with the store.
type DeadLetterRepo struct {
	mu       sync.RWMutex
	messages map[string][]byte
}

// NewDeadLetterRepo creates an empty store.
func NewDeadLetterRepo() *DeadLetterRepo {
	return &DeadLetterRepo{messages: make(map[string][]byte)}
}

var _ repository.DeadLetterRepository = (*DeadLetterRepo)(nil)

func (repo *DeadLetterRepo) Upsert(_ context.Context, msg *entity.DeadLetterMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("Upsert: Marshal: %w", err)
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.messages[msg.ID] = data
	return nil
}

func (repo *DeadLetterRepo) Get(_ context.Context, id string) (*entity.DeadLetterMessage, error) {
	repo.mu.RLock()
	data, ok := repo.messages[id]
	repo.mu.RUnlock()
	if !ok {
		return nil, entity.ErrNotFound
	}
	return decode(data)
}

func (repo *DeadLetterRepo) Claim(_ context.Context, id string, now, staleBefore time.Time) (*entity.DeadLetterMessage, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	data, ok := repo.messages[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	msg, err := decode(data)
	if err != nil {
		return nil, err
	}
	if !repository.Claimable(msg, staleBefore) {
		return nil, entity.ErrAlreadyClaimed
	}
	msg.Status = entity.MessageReplaying
	msg.UpdatedAt = now
	if data, err = json.Marshal(msg); err != nil {
		return nil, fmt.Errorf("Claim: Marshal: %w", err)
	}
	repo.messages[id] = data
	return msg, nil
}

func (repo *DeadLetterRepo) List(_ context.Context, filter repository.DeadLetterFilter, page repository.Page) ([]*entity.DeadLetterMessage, error) {
	matched, err := repo.matching(filter)
	if err != nil {
		return nil, err
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

func (repo *DeadLetterRepo) Count(_ context.Context, filter repository.DeadLetterFilter) (int64, error) {
	matched, err := repo.matching(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (repo *DeadLetterRepo) Stats(_ context.Context) (*repository.DeadLetterStats, error) {
	all, err := repo.matching(repository.DeadLetterFilter{})
	if err != nil {
		return nil, err
	}
	stats := repository.NewDeadLetterStats()
	for _, m := range all {
		stats.Add(m)
	}
	return stats, nil
}

func (repo *DeadLetterRepo) Delete(_ context.Context, id string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, ok := repo.messages[id]; !ok {
		return entity.ErrNotFound
	}
	delete(repo.messages, id)
	return nil
}

// matching returns the filtered messages, oldest first.
func (repo *DeadLetterRepo) matching(filter repository.DeadLetterFilter) ([]*entity.DeadLetterMessage, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	out := make([]*entity.DeadLetterMessage, 0, len(repo.messages))
	for _, data := range repo.messages {
		msg, err := decode(data)
		if err != nil {
			return nil, err
		}
		if filter.Matches(msg) {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EnqueuedAt.Equal(out[j].EnqueuedAt) {
			return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func decode(data []byte) (*entity.DeadLetterMessage, error) {
	var msg entity.DeadLetterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode dead letter: %w", err)
	}
	return &msg, nil
}
