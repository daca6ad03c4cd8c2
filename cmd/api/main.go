package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"track-enricher/internal/app"
	hhttp "track-enricher/internal/handler/http"
	"track-enricher/internal/handler/http/auth"
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
	if settings.JWTSecret == "" {
		logger.Warn("JWT_SECRET is not set; enrich, replay and delete routes are unauthenticated")
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

	go a.Store.ReloadOnSignal(ctx, syscall.SIGHUP)

	handler := hhttp.NewRouter(hhttp.RouterConfig{
		Logger:      logger,
		Version:     getVersion(),
		Enricher:    a.Orchestrator,
		Providers:   a.Registry,
		DeadLetters: a.DeadLetters,
		Auth:        auth.New(settings.JWTSecret),
		Checks:      a.Checks(),
	})

	runServer(ctx, cancel, logger, handler)
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logger := logging.New()
	slog.SetDefault(logger)
	return logger
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	return pkgconfig.GetEnvString("VERSION", "dev")
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, handler http.Handler) {
	addr := pkgconfig.GetEnvString("API_ADDR", ":8080")
	// enrichment holds the connection for up to the pipeline deadline
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.String("version", getVersion()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error("server failed", slog.Any("error", err))
	}
	logger.Info("shutting down server...")

	shutdownTimeout := pkgconfig.GetEnvDuration("SHUTDOWN_TIMEOUT", 60*time.Second)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	// in-flight enrichments finish before background work is cancelled
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	cancel()
	logger.Info("server stopped")
}
