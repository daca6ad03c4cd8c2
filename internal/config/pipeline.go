// Package config loads the enrichment pipeline configuration.
//
// The pipeline file names every provider with its rate budget, breaker and
// retry settings, and every field with its ordered provider list. It is
// YAML or TOML, validated against the registered adapters at load time and
// hot-reloadable through Store.
package config

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/resilience/circuitbreaker"
	"track-enricher/internal/resilience/ratelimit"
	"track-enricher/internal/resilience/retry"
)

// Pipeline is the full enrichment configuration.
type Pipeline struct {
	// Deadline bounds the enrichment of one record.
	Deadline Duration `yaml:"deadline" toml:"deadline"`
	// FieldParallelism caps how many fields of one record are looked up at once.
	FieldParallelism int                 `yaml:"field_parallelism" toml:"field_parallelism"`
	Providers        map[string]Provider `yaml:"providers" toml:"providers"`
	Fields           map[string]Field    `yaml:"fields" toml:"fields"`
}

// Provider is the per-provider budget and resilience policy.
type Provider struct {
	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled" toml:"enabled"`
	// RateBudget is requests per Window. 0 disables the provider.
	RateBudget  *int     `yaml:"rate_budget" toml:"rate_budget"`
	Window      Duration `yaml:"window" toml:"window"`
	WaitTimeout Duration `yaml:"wait_timeout" toml:"wait_timeout"`
	Breaker     Breaker  `yaml:"breaker" toml:"breaker"`
	Retry       Retry    `yaml:"retry" toml:"retry"`
}

// Breaker configures the provider circuit breaker.
type Breaker struct {
	FailureThreshold int      `yaml:"failure_threshold" toml:"failure_threshold"`
	Window           Duration `yaml:"window" toml:"window"`
	Cooldown         Duration `yaml:"cooldown" toml:"cooldown"`
}

// Retry configures the provider retry policy.
type Retry struct {
	MaxAttempts int      `yaml:"max_attempts" toml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay" toml:"base_delay"`
	Multiplier  float64  `yaml:"multiplier" toml:"multiplier"`
	MaxDelay    Duration `yaml:"max_delay" toml:"max_delay"`
	Jitter      float64  `yaml:"jitter" toml:"jitter"`
}

// Field is the waterfall of one target field.
type Field struct {
	// Providers is tried in order until one meets Threshold.
	Providers []string `yaml:"providers" toml:"providers"`
	Threshold float64  `yaml:"threshold" toml:"threshold"`
	Required  bool     `yaml:"required" toml:"required"`
}

const (
	DefaultDeadline         = 45 * time.Second
	DefaultFieldParallelism = 4
	DefaultRateBudget       = 10
	DefaultRateWindow       = time.Second
	DefaultWaitTimeout      = 5 * time.Second
)

// IsEnabled reports whether the provider may be called at all.
func (p Provider) IsEnabled() bool {
	return (p.Enabled == nil || *p.Enabled) && p.Budget() > 0
}

// Budget returns the rate budget, applying the default when unset.
func (p Provider) Budget() int {
	if p.RateBudget == nil {
		return DefaultRateBudget
	}
	return *p.RateBudget
}

// LimiterSettings converts the provider budget for the rate limiter.
func (p Provider) LimiterSettings() ratelimit.Settings {
	return ratelimit.Settings{
		Enabled:     p.IsEnabled(),
		Budget:      p.Budget(),
		Window:      p.Window.Std(),
		WaitTimeout: p.WaitTimeout.Std(),
	}
}

// BreakerSettings converts the breaker section.
func (p Provider) BreakerSettings() circuitbreaker.Settings {
	return circuitbreaker.Settings{
		FailureThreshold: p.Breaker.FailureThreshold,
		Window:           p.Breaker.Window.Std(),
		Cooldown:         p.Breaker.Cooldown.Std(),
	}
}

// RetryPolicy converts the retry section. Rate-limited retries wait at
// least the provider window.
func (p Provider) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     p.Retry.MaxAttempts,
		BaseDelay:       p.Retry.BaseDelay.Std(),
		Multiplier:      p.Retry.Multiplier,
		MaxDelay:        p.Retry.MaxDelay.Std(),
		JitterFraction:  p.Retry.Jitter,
		RateLimitWindow: p.Window.Std(),
	}
}

// Field returns the configuration of a field.
func (p *Pipeline) Field(name string) (Field, bool) {
	f, ok := p.Fields[name]
	return f, ok
}

// FieldNames returns the configured field names in sorted order.
func (p *Pipeline) FieldNames() []string {
	names := make([]string, 0, len(p.Fields))
	for name := range p.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyDefaults fills unset values.
func (p *Pipeline) ApplyDefaults() {
	if p.Deadline == 0 {
		p.Deadline = Duration(DefaultDeadline)
	}
	if p.FieldParallelism == 0 {
		p.FieldParallelism = DefaultFieldParallelism
	}

	breakerDef := circuitbreaker.DefaultSettings()
	retryDef := retry.DefaultPolicy()
	for name, prov := range p.Providers {
		if prov.Window == 0 {
			prov.Window = Duration(DefaultRateWindow)
		}
		if prov.WaitTimeout == 0 {
			prov.WaitTimeout = Duration(DefaultWaitTimeout)
		}
		if prov.Breaker.FailureThreshold == 0 {
			prov.Breaker.FailureThreshold = breakerDef.FailureThreshold
		}
		if prov.Breaker.Window == 0 {
			prov.Breaker.Window = Duration(breakerDef.Window)
		}
		if prov.Breaker.Cooldown == 0 {
			prov.Breaker.Cooldown = Duration(breakerDef.Cooldown)
		}
		if prov.Retry.MaxAttempts == 0 {
			prov.Retry.MaxAttempts = retryDef.MaxAttempts
		}
		if prov.Retry.BaseDelay == 0 {
			prov.Retry.BaseDelay = Duration(retryDef.BaseDelay)
		}
		if prov.Retry.Multiplier == 0 {
			prov.Retry.Multiplier = retryDef.Multiplier
		}
		if prov.Retry.MaxDelay == 0 {
			prov.Retry.MaxDelay = Duration(retryDef.MaxDelay)
		}
		p.Providers[name] = prov
	}
}

// Validate checks the pipeline against the registered adapter names.
// All problems are reported together.
func (p *Pipeline) Validate(registered []string) error {
	var errs []error

	if p.Deadline <= 0 {
		errs = append(errs, errors.New("deadline must be positive"))
	}
	if p.FieldParallelism < 1 {
		errs = append(errs, errors.New("field_parallelism must be at least 1"))
	}

	known := make(map[string]bool, len(registered))
	for _, name := range registered {
		known[name] = true
	}

	for _, name := range sortedKeys(p.Providers) {
		prov := p.Providers[name]
		if !known[name] {
			errs = append(errs, fmt.Errorf("provider %q: no adapter registered", name))
		}
		errs = append(errs, validateProvider(name, prov)...)
	}

	if len(p.Fields) == 0 {
		errs = append(errs, errors.New("at least one field must be configured"))
	}
	for _, name := range p.FieldNames() {
		f := p.Fields[name]
		if !entity.IsKnownField(name) {
			errs = append(errs, fmt.Errorf("field %q: unknown field", name))
		}
		if len(f.Providers) == 0 {
			errs = append(errs, fmt.Errorf("field %q: provider list is empty", name))
		}
		if f.Threshold <= 0 || f.Threshold > 1 {
			errs = append(errs, fmt.Errorf("field %q: threshold %v must be in (0, 1]", name, f.Threshold))
		}
		seen := make(map[string]bool, len(f.Providers))
		for _, prov := range f.Providers {
			if seen[prov] {
				errs = append(errs, fmt.Errorf("field %q: provider %q listed twice", name, prov))
			}
			seen[prov] = true
			if _, ok := p.Providers[prov]; !ok {
				errs = append(errs, fmt.Errorf("field %q: provider %q is not configured", name, prov))
			}
		}
	}

	return errors.Join(errs...)
}

func validateProvider(name string, prov Provider) []error {
	var errs []error
	if prov.Budget() < 0 {
		errs = append(errs, fmt.Errorf("provider %q: rate_budget must not be negative", name))
	}
	if prov.Window <= 0 {
		errs = append(errs, fmt.Errorf("provider %q: window must be positive", name))
	}
	if prov.WaitTimeout < 0 {
		errs = append(errs, fmt.Errorf("provider %q: wait_timeout must not be negative", name))
	}
	if prov.Breaker.FailureThreshold < 1 {
		errs = append(errs, fmt.Errorf("provider %q: breaker.failure_threshold must be at least 1", name))
	}
	if prov.Breaker.Cooldown <= 0 {
		errs = append(errs, fmt.Errorf("provider %q: breaker.cooldown must be positive", name))
	}
	if prov.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("provider %q: retry.max_attempts must be at least 1", name))
	}
	if prov.Retry.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("provider %q: retry.multiplier must be at least 1", name))
	}
	if prov.Retry.Jitter < 0 || prov.Retry.Jitter > 1 {
		errs = append(errs, fmt.Errorf("provider %q: retry.jitter must be in [0, 1]", name))
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
