package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/handler/http/respond"
	"track-enricher/internal/repository"
)

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthResponse is the body of /health and /health/ready.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks,omitempty"`
	Version   string                 `json:"version"`
}

// CheckStatus is the result of one readiness check.
type CheckStatus struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// CheckFunc checks one dependency.
type CheckFunc func(ctx context.Context) CheckStatus

// HealthHandler serves liveness (no checks) and readiness (all checks).
// Only unhealthy checks fail readiness; degraded ones are reported.
type HealthHandler struct {
	Version string
	Checks  map[string]CheckFunc
	// Ready runs the checks when true.
	Ready bool
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.Version,
	}

	if h.Ready && len(h.Checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp.Checks = make(map[string]CheckStatus, len(h.Checks))
		names := make([]string, 0, len(h.Checks))
		for name := range h.Checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			st := h.Checks[name](ctx)
			resp.Checks[name] = st
			resp.Status = worse(resp.Status, st.Status)
		}
	}

	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, resp)
}

func worse(a, b string) string {
	rank := map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Pinger is any dependency with a cheap liveness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports p unhealthy when Ping fails.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) CheckStatus {
		if err := p.Ping(ctx); err != nil {
			return CheckStatus{Status: StatusUnhealthy, Message: respond.SanitizeError(err)}
		}
		return CheckStatus{Status: StatusHealthy}
	}
}

// DeadLetterCounter is the part of the dead-letter store the check needs.
type DeadLetterCounter interface {
	Count(ctx context.Context, filter repository.DeadLetterFilter) (int64, error)
}

// DeadLetterCheck reports the store unhealthy when it cannot be read and
// includes the backlog size.
func DeadLetterCheck(store DeadLetterCounter) CheckFunc {
	return func(ctx context.Context) CheckStatus {
		n, err := store.Count(ctx, repository.DeadLetterFilter{})
		if err != nil {
			return CheckStatus{Status: StatusUnhealthy, Message: respond.SanitizeError(err)}
		}
		return CheckStatus{Status: StatusHealthy, Details: map[string]interface{}{"backlog": n}}
	}
}

// ProviderStates lists provider snapshots.
type ProviderStates interface {
	States() []entity.ProviderState
}

// ProvidersCheck is degraded while any enabled provider's circuit is not
// closed. It never fails readiness; the waterfall routes around open circuits.
func ProvidersCheck(p ProviderStates) CheckFunc {
	return func(context.Context) CheckStatus {
		states := p.States()
		details := make(map[string]interface{}, len(states))
		status := StatusHealthy
		for _, s := range states {
			details[s.Provider] = string(s.Breaker)
			if s.Enabled && s.Breaker != entity.BreakerClosed {
				status = StatusDegraded
			}
		}
		return CheckStatus{Status: status, Details: details}
	}
}
