package provider

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"track-enricher/internal/config"
	"track-enricher/internal/domain/entity"
	"track-enricher/internal/observability/metrics"
	"track-enricher/internal/resilience/circuitbreaker"
	"track-enricher/internal/resilience/ratelimit"
)

// LimiterFactory creates the limiter of a provider.
type LimiterFactory func(name string, s ratelimit.Settings) ratelimit.Limiter

// Registry owns the adapters of all configured providers.
type Registry struct {
	sources    map[string]Source
	newLimiter LimiterFactory
	breakerOps []circuitbreaker.Option

	mu       sync.RWMutex
	adapters map[string]*Adapter
}

// Option customizes a Registry.
type Option func(*Registry)

// WithLimiterFactory replaces the in-process token bucket, e.g. with a
// limiter shared through Redis.
func WithLimiterFactory(f LimiterFactory) Option {
	return func(r *Registry) { r.newLimiter = f }
}

// WithBreakerOptions passes opts to every provider breaker.
func WithBreakerOptions(opts ...circuitbreaker.Option) Option {
	return func(r *Registry) { r.breakerOps = append(r.breakerOps, opts...) }
}

// NewRegistry registers sources. Names must be unique.
func NewRegistry(sources []Source, opts ...Option) (*Registry, error) {
	r := &Registry{
		sources:  make(map[string]Source, len(sources)),
		adapters: make(map[string]*Adapter),
		newLimiter: func(_ string, s ratelimit.Settings) ratelimit.Limiter {
			return ratelimit.NewLocal(s)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, s := range sources {
		name := s.Name()
		if _, dup := r.sources[name]; dup {
			return nil, fmt.Errorf("provider %q registered twice", name)
		}
		r.sources[name] = s
	}
	return r, nil
}

// Names returns the registered source names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply creates adapters for newly configured providers and updates the
// settings of existing ones. Breaker state and token buckets survive.
// Providers without a registered source are skipped; config validation
// rejects them before they get here.
func (r *Registry) Apply(p *config.Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, cfg := range p.Providers {
		if a, ok := r.adapters[name]; ok {
			a.state.update(cfg)
			continue
		}
		src, ok := r.sources[name]
		if !ok {
			slog.Warn("no source registered for configured provider", slog.String("provider", name))
			continue
		}
		r.adapters[name] = NewAdapter(src, r.newState(name, cfg))
	}
}

func (r *Registry) newState(name string, cfg config.Provider) *State {
	opts := append([]circuitbreaker.Option{
		circuitbreaker.WithStateChange(func(name string, _, to entity.BreakerState) {
			metrics.RecordBreakerTransition(name, to)
		}),
	}, r.breakerOps...)

	limiter := r.newLimiter(name, cfg.LimiterSettings())
	breaker := circuitbreaker.New(name, cfg.BreakerSettings(), opts...)
	metrics.SetBreakerState(name, entity.BreakerClosed)
	return newState(name, cfg, limiter, breaker)
}

// Bind applies the current pipeline of store and every later reload.
func (r *Registry) Bind(store *config.Store) {
	r.Apply(store.Current())
	store.Subscribe(r.Apply)
}

// Adapter returns the adapter of provider name.
func (r *Registry) Adapter(name string) (*Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// States returns a snapshot of every configured provider, sorted by name.
func (r *Registry) States() []entity.ProviderState {
	r.mu.RLock()
	adapters := make([]*Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		adapters = append(adapters, a)
	}
	r.mu.RUnlock()

	out := make([]entity.ProviderState, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, a.state.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}
