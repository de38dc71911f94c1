package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/inkmath/internal/storage"
)

// RouterConfig wires the API's collaborators.
type RouterConfig struct {
	Editor      Editor
	Rounds      RoundLister      // optional
	Store       storage.Provider // optional drop directory
	AuthEnabled bool
	Token       string
	// SSE, if non-nil, is mounted at GET /events inside the auth group.
	SSE http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(cfg RouterConfig) chi.Router {
	h := NewHandler(cfg.Editor, cfg.Rounds)
	dh := NewDocumentHandler(cfg.Editor, cfg.Store)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	r.Get("/tree", h.GetTree)
	r.Post("/strokes", h.AddStroke)
	r.Post("/erase", h.Erase)

	r.Get("/blocks", h.ListBlocks)
	r.Post("/blocks/delete", h.DeleteBlocks)
	r.Delete("/blocks/{id}", h.DeleteBlock)

	r.Get("/documents", dh.List)
	r.Post("/documents", dh.Upload)

	r.Get("/rounds", h.ListRounds)

	if cfg.SSE != nil {
		r.Get("/events", cfg.SSE.ServeHTTP)
	}

	return r
}
