// Package deadletter serves the dead-letter management API.
package deadletter

import (
	"errors"
	"net/http"

	"github.com/sony/gobreaker"

	"track-enricher/internal/common/pagination"
	"track-enricher/internal/handler/http/auth"
	"track-enricher/internal/handler/http/pathutil"
	"track-enricher/internal/handler/http/respond"
	dlUC "track-enricher/internal/usecase/deadletter"
)

// Register mounts the dead-letter routes on mux. Replay and delete go
// through authn.
func Register(mux *http.ServeMux, svc *dlUC.Service, authn *auth.Authenticator) {
	pages := pagination.LoadFromEnv()

	mux.Handle("GET /deadletters/messages", ListHandler{Svc: svc, Pages: pages})
	mux.Handle("GET /deadletters/messages/{id}", GetHandler{Svc: svc})
	mux.Handle("GET /deadletters/stats", StatsHandler{Svc: svc})

	mux.Handle("POST /deadletters/replay/batch", authn.Require(BatchReplayHandler{Svc: svc}))
	mux.Handle("POST /deadletters/replay/{id}", authn.Require(ReplayHandler{Svc: svc}))
	mux.Handle("DELETE /deadletters/messages/{id}", authn.Require(DeleteHandler{Svc: svc}))
}

// writeError maps use case errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dlUC.ErrInvalidMessageID), errors.Is(err, pathutil.ErrInvalidID):
		respond.Error(w, http.StatusBadRequest, err)
	case errors.Is(err, dlUC.ErrMessageNotFound):
		respond.Error(w, http.StatusNotFound, err)
	case errors.Is(err, dlUC.ErrReplayInProgress):
		respond.Error(w, http.StatusConflict, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		respond.Error(w, http.StatusServiceUnavailable, err)
	default:
		respond.Error(w, http.StatusInternalServerError, err)
	}
}
