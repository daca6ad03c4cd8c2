package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/repository"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func message(id string, class entity.ErrorClass, provider string, offset time.Duration) *entity.DeadLetterMessage {
	return &entity.DeadLetterMessage{
		ID:         id,
		Request:    entity.EnrichmentRequest{RecordID: id, Title: "t", Fields: []string{entity.FieldBPM}},
		Class:      class,
		Provider:   provider,
		Field:      entity.FieldBPM,
		Attempts:   []entity.Attempt{{Field: entity.FieldBPM, Provider: provider, Outcome: entity.OutcomeError, Class: class}},
		Status:     entity.MessagePending,
		EnqueuedAt: base.Add(offset),
		UpdatedAt:  base.Add(offset),
	}
}

func TestDeadLetterRepo_UpsertReplaces(t *testing.T) {
	repo := NewDeadLetterRepo()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, message("r1", entity.ClassRetryExhausted, "spotify", 0)))
	second := message("r1", entity.ClassCircuitOpen, "discogs", time.Minute)
	second.ReplayCount = 1
	require.NoError(t, repo.Upsert(ctx, second))

	n, err := repo.Count(ctx, repository.DeadLetterFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, entity.ClassCircuitOpen, got.Class)
	assert.Equal(t, 1, got.ReplayCount)
}

func TestDeadLetterRepo_GetReturnsCopy(t *testing.T) {
	repo := NewDeadLetterRepo()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, message("r1", entity.ClassRetryExhausted, "spotify", 0)))

	got, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	got.Class = entity.ClassFatalUnretryable

	again, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, entity.ClassRetryExhausted, again.Class)
}

func TestDeadLetterRepo_ListFilterAndPage(t *testing.T) {
	repo := NewDeadLetterRepo()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		class := entity.ClassRetryExhausted
		if i%2 == 1 {
			class = entity.ClassFatalUnretryable
		}
		require.NoError(t, repo.Upsert(ctx, message(fmt.Sprintf("r%d", i), class, "musicbrainz", time.Duration(i)*time.Minute)))
	}

	all, err := repo.List(ctx, repository.DeadLetterFilter{}, repository.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "r0", all[0].ID)
	assert.Equal(t, "r4", all[4].ID)

	exhausted, err := repo.List(ctx, repository.DeadLetterFilter{Class: entity.ClassRetryExhausted}, repository.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, exhausted, 3)

	page2, err := repo.List(ctx, repository.DeadLetterFilter{}, repository.Page{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, "r2", page2[0].ID)

	from := base.Add(2 * time.Minute)
	recent, err := repo.List(ctx, repository.DeadLetterFilter{From: &from}, repository.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	beyond, err := repo.List(ctx, repository.DeadLetterFilter{}, repository.Page{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestDeadLetterRepo_Stats(t *testing.T) {
	repo := NewDeadLetterRepo()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, message("a", entity.ClassRetryExhausted, "spotify", time.Minute)))
	require.NoError(t, repo.Upsert(ctx, message("b", entity.ClassRetryExhausted, "discogs", 0)))
	require.NoError(t, repo.Upsert(ctx, message("c", entity.ClassCircuitOpen, "spotify", 2*time.Minute)))

	stats, err := repo.Stats(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.ByClass[entity.ClassRetryExhausted])
	assert.Equal(t, int64(2), stats.ByProvider["spotify"])
	require.NotNil(t, stats.Oldest)
	assert.True(t, stats.Oldest.Equal(base))
}

func TestDeadLetterRepo_Delete(t *testing.T) {
	repo := NewDeadLetterRepo()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, message("r1", entity.ClassRetryExhausted, "spotify", 0)))

	require.NoError(t, repo.Delete(ctx, "r1"))
	assert.ErrorIs(t, repo.Delete(ctx, "r1"), entity.ErrNotFound)
	_, err := repo.Get(ctx, "r1")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestDeadLetterRepo_ConcurrentUpsert(t *testing.T) {
	repo := NewDeadLetterRepo()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.Upsert(ctx, message(fmt.Sprintf("r%d", i%10), entity.ClassRetryExhausted, "spotify", 0))
		}(i)
	}
	wg.Wait()

	n, err := repo.Count(ctx, repository.DeadLetterFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestDeadLetterRepo_Claim(t *testing.T) {
	repo := NewDeadLetterRepo()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, message("c1", entity.ClassRetryExhausted, "spotify", 0)))

	now := base.Add(time.Hour)
	got, err := repo.Claim(ctx, "c1", now, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, entity.MessageReplaying, got.Status)
	assert.True(t, got.UpdatedAt.Equal(now))

	_, err = repo.Claim(ctx, "c1", now, now.Add(-time.Minute))
	assert.ErrorIs(t, err, entity.ErrAlreadyClaimed)

	later := now.Add(10 * time.Minute)
	_, err = repo.Claim(ctx, "c1", later, later.Add(-time.Minute))
	assert.NoError(t, err, "an abandoned claim can be taken over")

	_, err = repo.Claim(ctx, "missing", now, now)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestDeadLetterRepo_ConcurrentClaimHasOneWinner(t *testing.T) {
	repo := NewDeadLetterRepo()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, message("c1", entity.ClassRetryExhausted, "spotify", 0)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	now := base.Add(time.Hour)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Claim(ctx, "c1", now, now.Add(-time.Minute)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestDeadLetterRepo_ClaimableFilter(t *testing.T) {
	repo := NewDeadLetterRepo()
	ctx := context.Background()
	now := base.Add(time.Hour)

	pending := message("pending", entity.ClassRetryExhausted, "spotify", 0)
	stale := message("stale", entity.ClassRetryExhausted, "spotify", time.Minute)
	stale.Status = entity.MessageReplaying
	fresh := message("fresh", entity.ClassRetryExhausted, "spotify", 2*time.Minute)
	fresh.Status = entity.MessageReplaying
	fresh.UpdatedAt = now
	for _, m := range []*entity.DeadLetterMessage{pending, stale, fresh} {
		require.NoError(t, repo.Upsert(ctx, m))
	}

	cutoff := now.Add(-time.Minute)
	got, err := repo.List(ctx, repository.DeadLetterFilter{ClaimableBefore: &cutoff}, repository.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, m := range got {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"pending", "stale"}, ids)
}
