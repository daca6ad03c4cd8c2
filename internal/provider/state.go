package provider

import (
	"sync"

	"track-enricher/internal/config"
	"track-enricher/internal/domain/entity"
	"track-enricher/internal/resilience/circuitbreaker"
	"track-enricher/internal/resilience/ratelimit"
	"track-enricher/internal/resilience/retry"
)

// State is the shared, lock-guarded state of one provider. Every adapter
// call for the provider, from any record, goes through the same State.
type State struct {
	name    string
	limiter ratelimit.Limiter
	breaker *circuitbreaker.Breaker

	mu      sync.RWMutex
	enabled bool
	limits  ratelimit.Settings
	policy  retry.Policy
}

func newState(name string, cfg config.Provider, limiter ratelimit.Limiter, breaker *circuitbreaker.Breaker) *State {
	return &State{
		name:    name,
		limiter: limiter,
		breaker: breaker,
		enabled: cfg.IsEnabled(),
		limits:  cfg.LimiterSettings(),
		policy:  cfg.RetryPolicy(),
	}
}

// Name returns the provider name.
func (s *State) Name() string { return s.name }

// Enabled reports whether the provider may be called.
func (s *State) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled && s.limits.Budget > 0
}

// Policy returns a copy of the current retry policy.
func (s *State) Policy() retry.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Limiter returns the provider's limiter.
func (s *State) Limiter() ratelimit.Limiter { return s.limiter }

// Breaker returns the provider's breaker.
func (s *State) Breaker() *circuitbreaker.Breaker { return s.breaker }

// update applies a reloaded provider config. Breaker state and the token
// bucket are kept.
func (s *State) update(cfg config.Provider) {
	s.mu.Lock()
	s.enabled = cfg.IsEnabled()
	s.limits = cfg.LimiterSettings()
	s.policy = cfg.RetryPolicy()
	s.mu.Unlock()

	s.limiter.Update(cfg.LimiterSettings())
	s.breaker.Update(cfg.BreakerSettings())
}

// Snapshot returns the inspection view of the provider.
func (s *State) Snapshot() entity.ProviderState {
	stats := s.breaker.Stats()
	util := s.limiter.Utilization()

	return entity.ProviderState{
		Provider:            s.name,
		Enabled:             s.Enabled(),
		Breaker:             stats.State,
		ConsecutiveFailures: stats.ConsecutiveFailures,
		LastStateChange:     stats.LastStateChange,
		OpenUntil:           stats.OpenUntil,
		Tokens:              util.Available,
		Budget:              util.Budget,
		Window:              util.Window,
	}
}
