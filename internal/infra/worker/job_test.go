package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	dlUC "track-enricher/internal/usecase/deadletter"
)

type stubReplayer struct {
	results  []dlUC.ReplayResult
	err      error
	limit    int
	deadline bool
}

func (s *stubReplayer) AutoReplay(ctx context.Context, limit int) ([]dlUC.ReplayResult, error) {
	s.limit = limit
	_, s.deadline = ctx.Deadline()
	return s.results, s.err
}

func TestReplayJob_Success(t *testing.T) {
	rep := &stubReplayer{results: []dlUC.ReplayResult{
		{ID: "a", Status: dlUC.ReplaySucceeded},
		{ID: "b", Status: dlUC.ReplaySucceeded},
		{ID: "c", Status: dlUC.ReplayFailed},
	}}
	cfg := DefaultConfig()
	cfg.BatchSize = 25
	okBefore := testutil.ToFloat64(testMetrics.MessagesReplayed.WithLabelValues(dlUC.ReplaySucceeded))
	runsBefore := testutil.ToFloat64(testMetrics.JobRunsTotal.WithLabelValues("success"))

	ReplayJob{Replayer: rep, Config: &cfg, Metrics: testMetrics, Logger: quietLogger()}.Run(context.Background())

	assert.Equal(t, 25, rep.limit)
	assert.True(t, rep.deadline)
	assert.Equal(t, okBefore+2, testutil.ToFloat64(testMetrics.MessagesReplayed.WithLabelValues(dlUC.ReplaySucceeded)))
	assert.Equal(t, runsBefore+1, testutil.ToFloat64(testMetrics.JobRunsTotal.WithLabelValues("success")))
	assert.InDelta(t, float64(time.Now().Unix()), testutil.ToFloat64(testMetrics.LastSuccessTimestamp), 5)
}

func TestReplayJob_Failure(t *testing.T) {
	rep := &stubReplayer{err: errors.New("list replay candidates: connection refused")}
	cfg := DefaultConfig()
	before := testutil.ToFloat64(testMetrics.JobRunsTotal.WithLabelValues("failure"))

	ReplayJob{Replayer: rep, Config: &cfg, Metrics: testMetrics, Logger: quietLogger()}.Run(context.Background())

	assert.Equal(t, before+1, testutil.ToFloat64(testMetrics.JobRunsTotal.WithLabelValues("failure")))
}
