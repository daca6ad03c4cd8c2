package deadletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"track-enricher/internal/common/pagination"
	"track-enricher/internal/domain/entity"
	"track-enricher/internal/observability/logging"
	"track-enricher/internal/observability/metrics"
	"track-enricher/internal/observability/slo"
	"track-enricher/internal/observability/tracing"
	"track-enricher/internal/repository"
)

// Replay result statuses.
const (
	ReplaySucceeded = "succeeded"
	ReplayFailed    = "failed"
	ReplayError     = "error"
)

// Runner re-runs the enrichment waterfall. *enrich.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, req entity.EnrichmentRequest, rec *entity.EnrichmentRecord)
}

// Config tunes replays.
type Config struct {
	// ReplayConcurrency caps parallel replays in ReplayBatch.
	ReplayConcurrency int
	// MaxReplays stops AutoReplay from picking a message replayed this often.
	MaxReplays int
	// ReplayTimeout bounds a single replay on top of the pipeline deadline.
	ReplayTimeout time.Duration
	// ClaimTTL is how long a replaying message stays claimed. After that
	// the replay is considered abandoned and the message can be claimed
	// again. It defaults to twice ReplayTimeout.
	ClaimTTL time.Duration
}

// DefaultConfig returns concurrency 4, 5 automatic replays, 2 minute timeout.
func DefaultConfig() Config {
	return Config{
		ReplayConcurrency: 4,
		MaxReplays:        5,
		ReplayTimeout:     2 * time.Minute,
		ClaimTTL:          4 * time.Minute,
	}
}

// ReplayResult is the outcome of replaying one message.
type ReplayResult struct {
	ID     string                   `json:"id"`
	Status string                   `json:"status"`
	Class  entity.ErrorClass        `json:"classification,omitempty"`
	Error  string                   `json:"error,omitempty"`
	Record *entity.EnrichmentRecord `json:"record,omitempty"`
}

// ListResult is one page of messages.
type ListResult struct {
	Messages   []*entity.DeadLetterMessage
	Pagination pagination.Metadata
}

// Service provides dead-letter use cases.
type Service struct {
	repo   repository.DeadLetterRepository
	runner Runner
	cfg    Config
	pages  pagination.Config
	now    func() time.Time
}

// NewService creates a Service. Zero config values take DefaultConfig.
func NewService(repo repository.DeadLetterRepository, runner Runner, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.ReplayConcurrency < 1 {
		cfg.ReplayConcurrency = def.ReplayConcurrency
	}
	if cfg.MaxReplays < 1 {
		cfg.MaxReplays = def.MaxReplays
	}
	if cfg.ReplayTimeout <= 0 {
		cfg.ReplayTimeout = def.ReplayTimeout
	}
	if cfg.ClaimTTL <= cfg.ReplayTimeout {
		cfg.ClaimTTL = 2 * cfg.ReplayTimeout
	}
	return &Service{
		repo:   repo,
		runner: runner,
		cfg:    cfg,
		pages:  pagination.DefaultConfig(),
		now:    time.Now,
	}
}

// Enqueue stores msg, replacing any message for the same record.
// It implements enrich.DeadLetterSink.
func (s *Service) Enqueue(ctx context.Context, msg *entity.DeadLetterMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.Status == "" {
		msg.Status = entity.MessagePending
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = s.now()
	}
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = msg.UpdatedAt
	}

	if err := s.repo.Upsert(ctx, msg); err != nil {
		return fmt.Errorf("enqueue dead letter: %w", err)
	}
	metrics.RecordDeadLetterEnqueued(msg.Class)
	s.refreshDepth(ctx)
	return nil
}

// List returns one page of messages matching filter, oldest first.
func (s *Service) List(ctx context.Context, filter repository.DeadLetterFilter, params pagination.Params) (*ListResult, error) {
	params = params.WithDefaults(s.pages)

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count dead letters: %w", err)
	}
	msgs, err := s.repo.List(ctx, filter, repository.Page{Page: params.Page, Limit: params.Limit})
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	return &ListResult{
		Messages:   msgs,
		Pagination: pagination.NewMetadata(params, total),
	}, nil
}

// Stats aggregates messages by classification and provider.
func (s *Service) Stats(ctx context.Context) (*repository.DeadLetterStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("dead letter stats: %w", err)
	}
	metrics.SetDeadLetterDepth(stats.Total)
	slo.UpdateDeadLetterBacklog(stats.Total)
	return stats, nil
}

// Get returns one message.
func (s *Service) Get(ctx context.Context, id string) (*entity.DeadLetterMessage, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidMessageID
	}
	msg, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("get dead letter: %w", err)
	}
	return msg, nil
}

// Delete permanently removes a message.
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidMessageID
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("delete dead letter: %w", err)
	}
	metrics.RecordDeadLetterDeleted()
	s.refreshDepth(ctx)
	return nil
}

// Replay re-runs the original request of a message.
//
// On a complete record the message is removed. Otherwise it is stored again
// under the same id with its replay count incremented, the new attempts
// appended and the new classification. The message is claimed in the store
// first, so a replay already running in this or any other process sharing
// the store is refused with ErrReplayInProgress.
func (s *Service) Replay(ctx context.Context, id string) (*ReplayResult, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidMessageID
	}

	ctx, span := tracing.StartSpan(ctx, "deadletter.Replay", attribute.String("message_id", id))
	res, err := s.replay(ctx, id)
	if res != nil {
		span.SetAttributes(attribute.String("result", res.Status))
	}
	tracing.EndSpan(span, err)
	return res, err
}

func (s *Service) replay(ctx context.Context, id string) (*ReplayResult, error) {
	now := s.now()
	msg, err := s.repo.Claim(ctx, id, now, now.Add(-s.cfg.ClaimTTL))
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return nil, ErrMessageNotFound
	case errors.Is(err, entity.ErrAlreadyClaimed):
		return nil, ErrReplayInProgress
	case err != nil:
		return nil, fmt.Errorf("claim dead letter: %w", err)
	}
	log := logging.ForRecord(logging.WithCorrelationID(ctx, msg.Request.CorrelationID), id)

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.ReplayTimeout)
	rec := entity.NewRecord(msg.Request)
	s.runner.Run(runCtx, msg.Request, rec)
	cancel()

	// the outcome must be persisted even if the caller has gone away
	store := context.WithoutCancel(ctx)
	snap := rec.Snapshot()

	if snap.Status == entity.StatusComplete {
		if err := s.repo.Delete(store, id); err != nil && !errors.Is(err, entity.ErrNotFound) {
			return nil, fmt.Errorf("remove replayed dead letter: %w", err)
		}
		metrics.RecordDeadLetterReplay(ReplaySucceeded)
		s.refreshDepth(store)
		log.Info("dead letter replay succeeded", slog.Int("replay_count", msg.ReplayCount+1))
		return &ReplayResult{ID: id, Status: ReplaySucceeded, Record: snap}, nil
	}

	next := *msg
	next.ReplayCount++
	next.Attempts = append(append([]entity.Attempt(nil), msg.Attempts...), snap.Attempts...)
	next.Status = entity.MessagePending
	next.UpdatedAt = s.now()
	if snap.Failure != nil {
		next.Class = snap.Failure.Class
		next.Provider = snap.Failure.Provider
		next.Field = snap.Failure.Field
		next.Error = snap.Failure.Message
	}
	if err := s.repo.Upsert(store, &next); err != nil {
		return nil, fmt.Errorf("re-enqueue dead letter: %w", err)
	}
	metrics.RecordDeadLetterReplay(ReplayFailed)
	log.Warn("dead letter replay failed",
		slog.String("classification", string(next.Class)),
		slog.Int("replay_count", next.ReplayCount))

	return &ReplayResult{
		ID:     id,
		Status: ReplayFailed,
		Class:  next.Class,
		Error:  next.Error,
		Record: snap,
	}, nil
}

// ReplayBatch replays ids with bounded parallelism. Every id gets a result in
// input order; duplicates are replayed once.
func (s *Service) ReplayBatch(ctx context.Context, ids []string) []ReplayResult {
	ids = dedupe(ids)
	results := make([]ReplayResult, len(ids))

	var g errgroup.Group
	g.SetLimit(s.cfg.ReplayConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			res, err := s.Replay(ctx, id)
			if err != nil {
				results[i] = ReplayResult{ID: id, Status: ReplayError, Error: err.Error()}
				return nil
			}
			res.Record = nil
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// AutoReplay replays up to limit messages with a retryable classification
// that have been replayed fewer than MaxReplays times, oldest first. Pending
// messages qualify, and so do replaying ones whose claim is older than
// ClaimTTL.
func (s *Service) AutoReplay(ctx context.Context, limit int) ([]ReplayResult, error) {
	if limit < 1 {
		return nil, nil
	}
	staleBefore := s.now().Add(-s.cfg.ClaimTTL)
	filter := repository.DeadLetterFilter{
		MaxReplayCount:  s.cfg.MaxReplays,
		ClaimableBefore: &staleBefore,
	}

	var ids []string
	for page := 1; len(ids) < limit; page++ {
		msgs, err := s.repo.List(ctx, filter, repository.Page{Page: page, Limit: s.pages.MaxLimit})
		if err != nil {
			return nil, fmt.Errorf("list replay candidates: %w", err)
		}
		for _, m := range msgs {
			if m.Class.Retryable() && len(ids) < limit {
				ids = append(ids, m.ID)
			}
		}
		if len(msgs) < s.pages.MaxLimit {
			break
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	slog.Info("auto-replaying dead letters", slog.Int("count", len(ids)))
	return s.ReplayBatch(ctx, ids), nil
}

func (s *Service) refreshDepth(ctx context.Context) {
	n, err := s.repo.Count(ctx, repository.DeadLetterFilter{})
	if err != nil {
		slog.Debug("failed to refresh dead letter depth", slog.Any("error", err))
		return
	}
	metrics.SetDeadLetterDepth(n)
	slo.UpdateDeadLetterBacklog(n)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
