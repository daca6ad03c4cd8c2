// Package app assembles the enrichment pipeline from environment settings.
// The API server, the replay worker and enrichctl all build through here so
// they share provider state backends and the dead-letter store.
package app

import (
	"fmt"
	"time"

	pkgconfig "track-enricher/pkg/config"
)

// Storage backends for the dead-letter store.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

// State backends for rate limit windows and breaker trips.
const (
	StateLocal = "local"
	StateRedis = "redis"
)

// Settings is the process-level configuration. The pipeline itself lives
// in the file at PipelinePath.
type Settings struct {
	PipelinePath string

	DeadLetterBackend string
	DatabaseURL       string
	SQLitePath        string

	RedisURL       string
	RedisPassword  string
	RedisKeyPrefix string

	// RateLimitBackend and BreakerBackend share provider budgets and
	// circuit trips across processes when set to "redis".
	RateLimitBackend string
	BreakerBackend   string

	SpotifyToken    string
	SpotifyBaseURL  string
	DiscogsToken    string
	DiscogsBaseURL  string
	MusicBrainzURL  string
	SongBPMBaseURL  string
	ProviderTimeout time.Duration

	ReplayConcurrency int
	MaxReplays        int
	ReplayTimeout     time.Duration
	ReplayClaimTTL    time.Duration

	// SLOWindow is the number of recent records the completion ratio covers.
	SLOWindow int

	JWTSecret string
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (Settings, error) {
	s := Settings{
		PipelinePath: pkgconfig.GetEnvString("PIPELINE_CONFIG", "configs/pipeline.yaml"),

		DeadLetterBackend: pkgconfig.GetEnvString("DLQ_BACKEND", BackendMemory),
		DatabaseURL:       pkgconfig.GetEnvString("DATABASE_URL", ""),
		SQLitePath:        pkgconfig.GetEnvString("SQLITE_PATH", "deadletters.db"),

		RedisURL:       pkgconfig.GetEnvString("REDIS_URL", ""),
		RedisPassword:  pkgconfig.GetEnvString("REDIS_PASSWORD", ""),
		RedisKeyPrefix: pkgconfig.GetEnvString("REDIS_KEY_PREFIX", "enricher"),

		RateLimitBackend: pkgconfig.GetEnvString("RATELIMIT_BACKEND", StateLocal),
		BreakerBackend:   pkgconfig.GetEnvString("BREAKER_BACKEND", StateLocal),

		SpotifyToken:    pkgconfig.GetEnvString("SPOTIFY_TOKEN", ""),
		SpotifyBaseURL:  pkgconfig.GetEnvString("SPOTIFY_BASE_URL", ""),
		DiscogsToken:    pkgconfig.GetEnvString("DISCOGS_TOKEN", ""),
		DiscogsBaseURL:  pkgconfig.GetEnvString("DISCOGS_BASE_URL", ""),
		MusicBrainzURL:  pkgconfig.GetEnvString("MUSICBRAINZ_BASE_URL", ""),
		SongBPMBaseURL:  pkgconfig.GetEnvString("SONGBPM_BASE_URL", ""),
		ProviderTimeout: pkgconfig.GetEnvDuration("PROVIDER_HTTP_TIMEOUT", 10*time.Second),

		ReplayConcurrency: pkgconfig.GetEnvInt("REPLAY_CONCURRENCY", 4),
		MaxReplays:        pkgconfig.GetEnvInt("REPLAY_MAX", 5),
		ReplayTimeout:     pkgconfig.GetEnvDuration("REPLAY_TIMEOUT", 2*time.Minute),
		ReplayClaimTTL:    pkgconfig.GetEnvDuration("REPLAY_CLAIM_TTL", 4*time.Minute),

		SLOWindow: pkgconfig.GetEnvInt("SLO_WINDOW", 500),

		JWTSecret: pkgconfig.GetEnvString("JWT_SECRET", ""),
	}
	return s, s.Validate()
}

// Validate checks backend names and the settings each backend needs.
func (s Settings) Validate() error {
	switch s.DeadLetterBackend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if s.DatabaseURL == "" {
			return fmt.Errorf("DLQ_BACKEND=postgres requires DATABASE_URL")
		}
	case BackendRedis:
		if s.RedisURL == "" {
			return fmt.Errorf("DLQ_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown DLQ_BACKEND %q", s.DeadLetterBackend)
	}

	for name, v := range map[string]string{"RATELIMIT_BACKEND": s.RateLimitBackend, "BREAKER_BACKEND": s.BreakerBackend} {
		switch v {
		case StateLocal:
		case StateRedis:
			if s.RedisURL == "" {
				return fmt.Errorf("%s=redis requires REDIS_URL", name)
			}
		default:
			return fmt.Errorf("unknown %s %q", name, v)
		}
	}

	if s.JWTSecret != "" && len(s.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	return nil
}

func (s Settings) needsRedis() bool {
	return s.DeadLetterBackend == BackendRedis || s.RateLimitBackend == StateRedis || s.BreakerBackend == StateRedis
}
