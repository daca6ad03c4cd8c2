// Package respond writes JSON responses and error bodies.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"track-enricher/internal/domain/entity"
)

// ErrorBody is the body of every error response. Classification carries
// the taxonomy string when the error has one.
type ErrorBody struct {
	Error          string            `json:"error"`
	Classification entity.ErrorClass `json:"classification,omitempty"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Default().Error("failed to encode JSON response",
				slog.Int("status_code", code),
				slog.Any("error", err))
		}
	}
}

// Error writes err as an ErrorBody. Server errors hide the message and are
// logged with secrets masked.
func Error(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}
	body := ErrorBody{Error: err.Error()}
	if class := classOf(err); class != "" {
		body.Classification = class
	}
	if code >= http.StatusInternalServerError {
		slog.Default().Error("internal server error",
			slog.Int("code", code),
			slog.String("error", SanitizeError(err)))
		body.Error = "internal server error"
	}
	JSON(w, code, body)
}

// classOf returns the taxonomy class of err, or "" when err is not a
// provider or pipeline error.
func classOf(err error) entity.ErrorClass {
	var classified entity.Classified
	if errors.As(err, &classified) {
		return classified.ErrorClass()
	}
	for _, sentinel := range []error{
		entity.ErrProviderDisabled,
		entity.ErrRateLimitTimeout,
		entity.ErrCircuitOpen,
		entity.ErrCircuitHalfOpenBusy,
	} {
		if errors.Is(err, sentinel) {
			return entity.ClassOf(err)
		}
	}
	return ""
}
