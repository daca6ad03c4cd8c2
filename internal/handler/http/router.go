package http

import (
	"log/slog"
	"net/http"

	"track-enricher/internal/handler/http/auth"
	hdl "track-enricher/internal/handler/http/deadletter"
	henrich "track-enricher/internal/handler/http/enrich"
	"track-enricher/internal/handler/http/requestid"
	"track-enricher/internal/observability/tracing"
	dlUC "track-enricher/internal/usecase/deadletter"
)

// maxBodyBytes caps request bodies on every route.
const maxBodyBytes = 1 << 20

// RouterConfig holds everything the API routes are built from.
type RouterConfig struct {
	Logger      *slog.Logger
	Version     string
	Enricher    henrich.Enricher
	Providers   henrich.StateLister
	DeadLetters *dlUC.Service
	Auth        *auth.Authenticator
	// Checks run on /health/ready.
	Checks map[string]CheckFunc
}

// NewRouter mounts every route and wraps the mux in the middleware chain:
// request id, tracing, logging, panic recovery, metrics, body limit.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Auth == nil {
		cfg.Auth = auth.New("")
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", HealthHandler{Version: cfg.Version})
	mux.Handle("GET /health/ready", HealthHandler{Version: cfg.Version, Checks: cfg.Checks, Ready: true})
	mux.Handle("GET /metrics", MetricsHandler())

	henrich.Register(mux, cfg.Enricher, cfg.Providers, cfg.Auth)
	if cfg.DeadLetters != nil {
		hdl.Register(mux, cfg.DeadLetters, cfg.Auth)
	}

	return Chain(mux,
		requestid.Middleware,
		tracing.Middleware,
		Logging(cfg.Logger),
		Recover(cfg.Logger),
		MetricsMiddleware,
		LimitRequestBody(maxBodyBytes),
	)
}
