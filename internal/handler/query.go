package handler

import (
	"encoding/json"
	"net/http"
)

type queryRequest struct {
	Text string `json:"text"`
}

// handleQuery submits one spoken or typed query and responds with the state
// the UI should render: the updated conversation list plus any notices the
// turn produced.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := h.manager.SubmitQuery(r.Context(), req.Text); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.manager.Snapshot())
}
