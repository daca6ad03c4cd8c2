package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"track-enricher/internal/app"
	workerPkg "track-enricher/internal/infra/worker"
	"track-enricher/internal/observability/logging"
	"track-enricher/internal/observability/tracing"
	pkgconfig "track-enricher/pkg/config"
)

func main() {
	logger := initLogger()

	settings, err := app.LoadSettings()
	if err != nil {
		logger.Error("invalid settings", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownTracer := tracing.InitTracer(pkgconfig.GetEnvFloat("TRACE_SAMPLE_RATIO", 0.1))
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to flush traces", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, settings, nil)
	if err != nil {
		logger.Error("failed to build pipeline", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close backends", slog.Any("error", err))
		}
	}()

	// Load worker configuration (fail-open strategy)
	metrics := workerPkg.NewWorkerMetrics()
	cfg := workerPkg.LoadConfigFromEnv(logger, metrics)
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", cfg.CronSchedule),
		slog.String("timezone", cfg.Timezone),
		slog.Int("batch_size", cfg.BatchSize),
		slog.Duration("job_timeout", cfg.JobTimeout),
		slog.Int("health_port", cfg.HealthPort))

	go a.Store.Poll(ctx, cfg.ConfigPollInterval)
	go a.Store.ReloadOnSignal(ctx, syscall.SIGHUP)

	health := workerPkg.NewHealthServer(fmt.Sprintf(":%d", cfg.HealthPort), getVersion(), a.Checks(), logger)
	go func() {
		if err := health.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server stopped", slog.Any("error", err))
		}
	}()

	job := workerPkg.ReplayJob{
		Replayer: a.DeadLetters,
		Config:   cfg,
		Metrics:  metrics,
		Logger:   logger,
	}
	c := cron.New(cron.WithLocation(cfg.Location()))
	if _, err := c.AddFunc(cfg.CronSchedule, func() { job.Run(ctx) }); err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()
	health.SetReady(true)
	logger.Info("worker started", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	health.SetReady(false)
	// a running replay finishes before backends close
	<-c.Stop().Done()
	cancel()
	logger.Info("worker stopped")
}

func initLogger() *slog.Logger {
	logger := logging.New()
	slog.SetDefault(logger)
	return logger
}

func getVersion() string {
	return pkgconfig.GetEnvString("VERSION", "dev")
}
