package deadletter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"track-enricher/internal/handler/http/auth"
	"track-enricher/internal/handler/http/pathutil"
	"track-enricher/internal/handler/http/respond"
	"track-enricher/internal/observability/logging"
	dlUC "track-enricher/internal/usecase/deadletter"
)

// maxBatch bounds one batch replay request.
const maxBatch = 100

type ReplayHandler struct{ Svc *dlUC.Service }

func (h ReplayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	logging.FromContext(r.Context()).Info("dead letter replay requested",
		slog.String("message_id", id),
		slog.String("subject", auth.Subject(r.Context())))

	res, err := h.Svc.Replay(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

type batchRequest struct {
	IDs []string `json:"ids"`
}

// BatchResponse is the body of a batch replay.
type BatchResponse struct {
	Results   []dlUC.ReplayResult `json:"results"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Errors    int                 `json:"errors"`
}

type BatchReplayHandler struct{ Svc *dlUC.Service }

func (h BatchReplayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	ids := make([]string, 0, len(req.IDs))
	for _, id := range req.IDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		respond.Error(w, http.StatusBadRequest, fmt.Errorf("ids is required"))
		return
	}
	if len(ids) > maxBatch {
		respond.Error(w, http.StatusBadRequest, fmt.Errorf("ids must be at most %d", maxBatch))
		return
	}

	results := h.Svc.ReplayBatch(r.Context(), ids)
	resp := BatchResponse{Results: results}
	for _, res := range results {
		switch res.Status {
		case dlUC.ReplaySucceeded:
			resp.Succeeded++
		case dlUC.ReplayFailed:
			resp.Failed++
		default:
			resp.Errors++
		}
	}
	respond.JSON(w, http.StatusOK, resp)
}
