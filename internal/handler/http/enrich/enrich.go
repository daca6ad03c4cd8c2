package enrich

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/handler/http/requestid"
	"track-enricher/internal/handler/http/respond"
	"track-enricher/internal/observability/logging"
)

// EnrichHandler runs the waterfall for one record synchronously and returns
// the final record. Failed records are dead-lettered before the response is
// written, so a 200 with status "failed" means the message is persisted.
type EnrichHandler struct{ Enricher Enricher }

func (h EnrichHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req entity.EnrichmentRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	req.RecordID = strings.TrimSpace(req.RecordID)
	if req.CorrelationID == "" {
		req.CorrelationID = requestid.FromContext(r.Context())
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	rec, err := h.Enricher.Enrich(r.Context(), req)
	if err != nil {
		logging.FromContext(r.Context()).Error("enrichment request failed",
			slog.String("record_id", req.RecordID),
			slog.Any("error", err))
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, rec.Snapshot())
}

// ProvidersHandler lists provider state sorted by name.
type ProvidersHandler struct{ States StateLister }

func (h ProvidersHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	states := h.States.States()
	if states == nil {
		states = []entity.ProviderState{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"providers": states})
}
