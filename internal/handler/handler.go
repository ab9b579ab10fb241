// Package handler exposes the conversation manager over a small JSON API for
// the browser UI.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/elderquery/elderquery/internal/config"
	"github.com/elderquery/elderquery/internal/middleware"
	"github.com/elderquery/elderquery/internal/service"
	"github.com/elderquery/elderquery/internal/session"
)

// Handler holds all dependencies needed by the HTTP handlers.
type Handler struct {
	cfg      *config.Config
	manager  *service.ConversationManager
	keys     *service.APIKeyService
	sessions session.Provider
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Cfg      *config.Config
	Manager  *service.ConversationManager
	Keys     *service.APIKeyService
	Sessions session.Provider
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		cfg:      deps.Cfg,
		manager:  deps.Manager,
		keys:     deps.Keys,
		sessions: deps.Sessions,
	}
}

// Routes builds the router with all API endpoints registered.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging())
	r.Use(middleware.CORS(h.cfg.AllowedOrigins))

	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleState)

		r.Post("/session", h.handleSignIn)
		r.Delete("/session", h.handleSignOut)

		r.Post("/query", h.handleQuery)

		r.Post("/conversations", h.handleCreateConversation)
		r.Post("/conversations/{id}/activate", h.handleActivateConversation)
		r.Delete("/conversations/{id}", h.handleDeleteConversation)

		r.Get("/keys", h.handleGetKeys)
		r.Put("/keys/{provider}", h.handleSetKey)
		r.Delete("/keys/{provider}", h.handleClearKey)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Snapshot())
}
