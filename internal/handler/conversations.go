package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type createConversationRequest struct {
	Activate bool `json:"activate"`
}

func (h *Handler) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	conv, err := h.manager.CreateConversation(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Activate {
		h.manager.SwitchConversation(conv.ID)
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *Handler) handleActivateConversation(w http.ResponseWriter, r *http.Request) {
	h.manager.SwitchConversation(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, h.manager.Snapshot())
}

func (h *Handler) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.DeleteConversation(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
