package worker

import (
	"context"
	"log/slog"
	"time"

	"track-enricher/internal/handler/http/respond"
	dlUC "track-enricher/internal/usecase/deadletter"
)

// Replayer picks and replays retryable dead letters.
// *deadletter.Service implements it.
type Replayer interface {
	AutoReplay(ctx context.Context, limit int) ([]dlUC.ReplayResult, error)
}

// ReplayJob is the unit of work the cron schedule runs.
type ReplayJob struct {
	Replayer Replayer
	Config   *ReplayConfig
	Metrics  *WorkerMetrics
	Logger   *slog.Logger
}

// Run replays one batch within the configured timeout. Errors are logged
// and counted; the schedule keeps going.
func (j ReplayJob) Run(ctx context.Context) {
	start := time.Now()
	j.Metrics.RecordJobRun("started")
	j.Logger.Info("replay started", slog.Int("batch_size", j.Config.BatchSize))

	ctx, cancel := context.WithTimeout(ctx, j.Config.JobTimeout)
	defer cancel()

	results, err := j.Replayer.AutoReplay(ctx, j.Config.BatchSize)
	j.Metrics.RecordJobDuration(time.Since(start).Seconds())
	if err != nil {
		j.Logger.Error("replay failed", slog.String("error", respond.SanitizeError(err)))
		j.Metrics.RecordJobRun("failure")
		return
	}

	counts := map[string]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	for status, n := range counts {
		j.Metrics.RecordReplayed(status, n)
	}
	j.Metrics.RecordJobRun("success")
	j.Metrics.RecordLastSuccess()

	j.Logger.Info("replay completed",
		slog.Int("replayed", len(results)),
		slog.Int("succeeded", counts[dlUC.ReplaySucceeded]),
		slog.Int("failed", counts[dlUC.ReplayFailed]),
		slog.Int("errors", counts[dlUC.ReplayError]),
		slog.Duration("duration", time.Since(start)),
	)
}
