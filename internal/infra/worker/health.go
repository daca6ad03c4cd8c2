package worker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	hhttp "track-enricher/internal/handler/http"
	"track-enricher/internal/handler/http/respond"
)

// HealthServer serves liveness, readiness and Prometheus metrics for the
// worker. Readiness fails until SetReady(true) and then runs the checks.
type HealthServer struct {
	addr    string
	logger  *slog.Logger
	version string
	checks  map[string]hhttp.CheckFunc
	isReady atomic.Bool
	server  *http.Server
}

// NewHealthServer creates a server that is not ready yet.
func NewHealthServer(addr, version string, checks map[string]hhttp.CheckFunc, logger *slog.Logger) *HealthServer {
	return &HealthServer{
		addr:    addr,
		logger:  logger,
		version: version,
		checks:  checks,
	}
}

// Handler returns the routes, for tests and embedding.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /health", hhttp.HealthHandler{Version: h.version})
	mux.HandleFunc("GET /health/ready", h.handleReadiness)
	mux.Handle("GET /metrics", hhttp.MetricsHandler())
	return mux
}

// Start serves until ctx is done, then shuts down and returns
// http.ErrServerClosed.
func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", h.addr))
		if err := h.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("health server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		h.logger.Info("health server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("health server failed", slog.Any("error", err))
		}
		return err
	}
}

// SetReady flips readiness.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !h.isReady.Load() {
		respond.JSON(w, http.StatusServiceUnavailable, hhttp.HealthResponse{
			Status:    hhttp.StatusUnhealthy,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   h.version,
		})
		return
	}
	hhttp.HealthHandler{Version: h.version, Checks: h.checks, Ready: true}.ServeHTTP(w, r)
}
