package deadletter

import (
	"net/http"

	"track-enricher/internal/handler/http/pathutil"
	"track-enricher/internal/handler/http/respond"
	dlUC "track-enricher/internal/usecase/deadletter"
)

type GetHandler struct{ Svc *dlUC.Service }

func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	msg, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, toDTO(msg))
}

type StatsHandler struct{ Svc *dlUC.Service }

func (h StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, stats)
}

type DeleteHandler struct{ Svc *dlUC.Service }

func (h DeleteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
