package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"track-enricher/internal/pkg/config"
)

// WorkerMetrics are the replay worker's job metrics plus its config
// fallback metrics.
type WorkerMetrics struct {
	*config.ConfigMetrics

	JobRunsTotal         *prometheus.CounterVec
	JobDurationSeconds   prometheus.Histogram
	MessagesReplayed     *prometheus.CounterVec
	LastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics registers the worker metrics with the default registry.
// Call it once per process.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		JobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_replay_job_runs_total",
			Help: "Total number of replay job runs by status (started/success/failure)",
		}, []string{"status"}),

		JobDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_replay_job_duration_seconds",
			Help:    "Duration of replay job execution in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800},
		}),

		MessagesReplayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_replay_messages_total",
			Help: "Dead letters replayed by the worker by result",
		}, []string{"result"}),

		LastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_replay_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful replay job run",
		}),
	}
}

func (m *WorkerMetrics) RecordJobRun(status string) {
	m.JobRunsTotal.WithLabelValues(status).Inc()
}

func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.JobDurationSeconds.Observe(seconds)
}

func (m *WorkerMetrics) RecordReplayed(result string, n int) {
	m.MessagesReplayed.WithLabelValues(result).Add(float64(n))
}

func (m *WorkerMetrics) RecordLastSuccess() {
	m.LastSuccessTimestamp.SetToCurrentTime()
}
