// Package enrich serves the enrichment and provider status API.
package enrich

import (
	"context"
	"errors"
	"net/http"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/handler/http/auth"
	"track-enricher/internal/handler/http/respond"
	enrichUC "track-enricher/internal/usecase/enrich"
)

// Enricher runs one enrichment request. *enrich.Orchestrator implements it.
type Enricher interface {
	Enrich(ctx context.Context, req entity.EnrichmentRequest) (*entity.EnrichmentRecord, error)
}

// StateLister reports provider health. *provider.Registry implements it.
type StateLister interface {
	States() []entity.ProviderState
}

// Register mounts POST /enrichments behind authn and GET /providers.
func Register(mux *http.ServeMux, enricher Enricher, states StateLister, authn *auth.Authenticator) {
	mux.Handle("POST /enrichments", authn.Require(EnrichHandler{Enricher: enricher}))
	mux.Handle("GET /providers", ProvidersHandler{States: states})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, enrichUC.ErrMissingRecordID):
		respond.Error(w, http.StatusBadRequest, err)
	default:
		respond.Error(w, http.StatusInternalServerError, err)
	}
}
