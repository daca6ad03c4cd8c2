package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"track-enricher/internal/pkg/config"
)

// ReplayConfig controls the scheduled dead-letter replay.
//
// Every field has a default and LoadConfigFromEnv never fails: an invalid
// environment value is replaced by its default, logged and counted in the
// config fallback metrics.
type ReplayConfig struct {
	// CronSchedule is a five-field cron expression. Default: "*/15 * * * *"
	CronSchedule string

	// Timezone is the IANA zone the schedule is evaluated in. Default: "UTC"
	Timezone string

	// BatchSize caps the messages replayed per run. Range 1-1000. Default: 50
	BatchSize int

	// JobTimeout bounds one run. Range 1m-2h. Default: 10 minutes
	JobTimeout time.Duration

	// HealthPort serves /health, /health/ready and /metrics. Default: 9091
	HealthPort int

	// ConfigPollInterval is how often the pipeline file is checked for
	// changes. Default: 30 seconds
	ConfigPollInterval time.Duration
}

// DefaultConfig returns a replay every 15 minutes in UTC, 50 messages per
// run with a 10 minute budget, health on 9091 and a 30 second config poll.
func DefaultConfig() ReplayConfig {
	return ReplayConfig{
		CronSchedule:       "*/15 * * * *",
		Timezone:           "UTC",
		BatchSize:          50,
		JobTimeout:         10 * time.Minute,
		HealthPort:         9091,
		ConfigPollInterval: 30 * time.Second,
	}
}

// Validate reports every invalid field.
func (c *ReplayConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateIntRange(c.BatchSize, 1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("batch size: %w", err))
	}
	if err := config.ValidateDuration(c.JobTimeout, time.Minute, 2*time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("job timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.ConfigPollInterval); err != nil {
		errs = append(errs, fmt.Errorf("config poll interval: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the schedule's time zone, UTC when it cannot be loaded.
func (c *ReplayConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfigFromEnv reads REPLAY_CRON_SCHEDULE, WORKER_TIMEZONE,
// REPLAY_BATCH_SIZE, REPLAY_JOB_TIMEOUT, WORKER_HEALTH_PORT and
// CONFIG_POLL_INTERVAL, falling back per field.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) *ReplayConfig {
	cfg := DefaultConfig()
	m := metrics.ConfigMetrics

	fallbacks := []bool{
		config.Track(m, logger, "cron_schedule",
			config.LoadString("REPLAY_CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule), &cfg.CronSchedule),
		config.Track(m, logger, "timezone",
			config.LoadString("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone), &cfg.Timezone),
		config.Track(m, logger, "batch_size",
			config.LoadInt("REPLAY_BATCH_SIZE", cfg.BatchSize, func(v int) error {
				return config.ValidateIntRange(v, 1, 1000)
			}), &cfg.BatchSize),
		config.Track(m, logger, "job_timeout",
			config.LoadDuration("REPLAY_JOB_TIMEOUT", cfg.JobTimeout, func(d time.Duration) error {
				return config.ValidateDuration(d, time.Minute, 2*time.Hour)
			}), &cfg.JobTimeout),
		config.Track(m, logger, "health_port",
			config.LoadInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
				return config.ValidateIntRange(v, 1024, 65535)
			}), &cfg.HealthPort),
		config.Track(m, logger, "config_poll_interval",
			config.LoadDuration("CONFIG_POLL_INTERVAL", cfg.ConfigPollInterval, config.ValidatePositiveDuration), &cfg.ConfigPollInterval),
	}

	m.SetFallbackActive(slices.Contains(fallbacks, true))
	m.RecordLoadTimestamp()
	return &cfg
}
