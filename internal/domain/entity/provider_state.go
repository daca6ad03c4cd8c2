package entity

import "time"

// BreakerState is the circuit breaker state of one provider.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// ProviderState is a point-in-time view of a provider's shared state.
// The live state is owned by the provider registry; this is only a copy.
type ProviderState struct {
	Provider            string        `json:"provider"`
	Enabled             bool          `json:"enabled"`
	Breaker             BreakerState  `json:"breaker"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastStateChange     time.Time     `json:"last_state_change"`
	OpenUntil           time.Time     `json:"open_until,omitempty"`
	Tokens              float64       `json:"tokens"`
	Budget              int           `json:"budget"`
	Window              time.Duration `json:"window"`
}
