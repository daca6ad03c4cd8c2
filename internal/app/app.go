package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"track-enricher/internal/config"
	hhttp "track-enricher/internal/handler/http"
	"track-enricher/internal/infra/adapter/persistence/memory"
	"track-enricher/internal/infra/adapter/persistence/postgres"
	"track-enricher/internal/infra/adapter/persistence/sqlite"
	"track-enricher/internal/infra/db"
	"track-enricher/internal/infra/redis"
	"track-enricher/internal/observability/slo"
	"track-enricher/internal/provider"
	"track-enricher/internal/repository"
	"track-enricher/internal/resilience/circuitbreaker"
	"track-enricher/internal/usecase/deadletter"
	"track-enricher/internal/usecase/enrich"
)

// App is a fully wired pipeline.
type App struct {
	Settings     Settings
	Store        *config.Store
	Registry     *provider.Registry
	Orchestrator *enrich.Orchestrator
	DeadLetters  *deadletter.Service
	// Repo is the dead-letter store behind its gobreaker guard.
	Repo    *circuitbreaker.GuardedDeadLetters
	Tracker *slo.Tracker

	sqlDB   *sql.DB
	redis   *redis.Client
	closers []func() error
}

// Build opens the storage backends and assembles the pipeline.
// sources defaults to Sources(s, LLM config from env) when nil.
func Build(ctx context.Context, s Settings, sources []provider.Source) (_ *App, err error) {
	a := &App{Settings: s}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if sources == nil {
		llmCfg, err := config.LoadLLMConfig()
		if err != nil {
			return nil, err
		}
		if sources, err = Sources(s, llmCfg); err != nil {
			return nil, err
		}
	}

	if s.needsRedis() {
		c, err := redis.NewClient(ctx, redis.Config{URL: s.RedisURL, Password: s.RedisPassword, KeyPrefix: s.RedisKeyPrefix})
		if err != nil {
			return nil, err
		}
		a.redis = c
		a.closers = append(a.closers, c.Close)
	}

	var opts []provider.Option
	if s.RateLimitBackend == StateRedis {
		opts = append(opts, provider.WithLimiterFactory(redis.LimiterFactory(a.redis)))
	}
	if s.BreakerBackend == StateRedis {
		opts = append(opts, provider.WithBreakerOptions(circuitbreaker.WithTripStore(redis.NewTripStore(a.redis))))
	}
	a.Registry, err = provider.NewRegistry(sources, opts...)
	if err != nil {
		return nil, err
	}

	a.Store, err = config.OpenStore(s.PipelinePath, a.Registry.Names())
	if err != nil {
		return nil, err
	}
	a.Registry.Bind(a.Store)

	repo, err := a.openRepo(ctx)
	if err != nil {
		return nil, err
	}
	a.Repo = circuitbreaker.NewGuardedDeadLetters(repo, "deadletters")

	a.Tracker = slo.NewTracker(s.SLOWindow)
	replayer := enrich.New(a.Registry, a.Store)
	a.DeadLetters = deadletter.NewService(a.Repo, replayer, deadletter.Config{
		ReplayConcurrency: s.ReplayConcurrency,
		MaxReplays:        s.MaxReplays,
		ReplayTimeout:     s.ReplayTimeout,
		ClaimTTL:          s.ReplayClaimTTL,
	})
	a.Orchestrator = enrich.New(a.Registry, a.Store,
		enrich.WithDeadLetterSink(a.DeadLetters),
		enrich.WithTracker(a.Tracker))

	slog.Info("pipeline assembled",
		slog.String("pipeline", s.PipelinePath),
		slog.String("dlq_backend", s.DeadLetterBackend),
		slog.String("ratelimit_backend", s.RateLimitBackend),
		slog.String("breaker_backend", s.BreakerBackend),
		slog.Any("providers", a.Registry.Names()))
	return a, nil
}

func (a *App) openRepo(ctx context.Context) (repository.DeadLetterRepository, error) {
	s := a.Settings
	switch s.DeadLetterBackend {
	case BackendPostgres:
		conn, err := db.Open(ctx, s.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.sqlDB = conn
		a.closers = append(a.closers, conn.Close)
		if err := db.Migrate(ctx, conn, db.DialectPostgres); err != nil {
			return nil, err
		}
		return postgres.NewDeadLetterRepo(conn), nil
	case BackendSQLite:
		conn, err := sqlite.Open(ctx, s.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.sqlDB = conn
		a.closers = append(a.closers, conn.Close)
		return sqlite.NewDeadLetterRepo(conn), nil
	case BackendRedis:
		return redis.NewDeadLetterRepo(a.redis), nil
	case BackendMemory:
		slog.Warn("dead letters are kept in memory and lost on restart")
		return memory.NewDeadLetterRepo(), nil
	default:
		return nil, fmt.Errorf("unknown DLQ_BACKEND %q", s.DeadLetterBackend)
	}
}

// Checks returns the readiness checks of the wired backends.
func (a *App) Checks() map[string]hhttp.CheckFunc {
	checks := map[string]hhttp.CheckFunc{
		"deadletters": hhttp.DeadLetterCheck(a.Repo),
		"providers":   hhttp.ProvidersCheck(a.Registry),
	}
	if a.sqlDB != nil {
		checks["database"] = hhttp.PingCheck(sqlPinger{a.sqlDB})
	}
	if a.redis != nil {
		checks["redis"] = hhttp.PingCheck(a.redis)
	}
	return checks
}

type sqlPinger struct{ db *sql.DB }

func (p sqlPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Close releases every backend in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
