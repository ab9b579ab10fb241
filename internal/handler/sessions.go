package handler

import (
	"encoding/json"
	"net/http"
)

type signInRequest struct {
	Token string `json:"token"`
}

// handleSignIn verifies the presented token with the session provider and
// rebinds the manager to the resulting identity, triggering the remote load
// (and, on first sign-in, the local-to-remote migration).
func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	userID, err := h.sessions.Verify(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.manager.SetIdentity(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.manager.Snapshot())
}

// handleSignOut drops the identity and reloads from the local store.
func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.SetIdentity(r.Context(), ""); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.manager.Snapshot())
}
