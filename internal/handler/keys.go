package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/elderquery/elderquery/internal/domain"
)

type setKeyRequest struct {
	Key string `json:"key"`
}

// handleGetKeys reports which provider keys are present without revealing
// them.
func (h *Handler) handleGetKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.Keys(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		domain.ProviderTavily: keys.Tavily != "",
		domain.ProviderOpenAI: keys.OpenAI != "",
	})
}

func (h *Handler) handleSetKey(w http.ResponseWriter, r *http.Request) {
	var req setKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := h.keys.SetKey(r.Context(), chi.URLParam(r, "provider"), req.Key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearKey(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.ClearKey(r.Context(), chi.URLParam(r, "provider")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
