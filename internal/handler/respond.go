package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/elderquery/elderquery/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps domain errors to status codes. Anything unmapped is an
// internal error with a generic message; raw errors never reach the client.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, domain.ErrEmptyQuery),
		errors.Is(err, domain.ErrUnknownProvider):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrInvalidToken):
		status = http.StatusUnauthorized
		message = err.Error()
	case errors.Is(err, domain.ErrConversationNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, domain.ErrBusy):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, domain.ErrMissingAPIKey):
		status = http.StatusPreconditionFailed
		message = err.Error()
	case errors.Is(err, domain.ErrSyncing),
		errors.Is(err, domain.ErrNotInitialized),
		errors.Is(err, domain.ErrRemoteUnavailable):
		status = http.StatusServiceUnavailable
		message = err.Error()
	default:
		slog.Error("request failed", "error", err)
	}

	writeJSON(w, status, errorResponse{Error: message})
}
