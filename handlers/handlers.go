// Package handlers exposes the resource repository and story generation over HTTP.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"storyforge/auth"
	"storyforge/db"
	"storyforge/generator"
	"storyforge/middleware"
	"storyforge/repository"
)

const (
	requestTimeout  = 10 * time.Second
	generateTimeout = 90 * time.Second
)

// StorageStatus is what the health endpoint reports on. *db.Manager implements it.
type StorageStatus interface {
	Mode() db.Mode
	Ping(ctx context.Context) error
}

// Handler serves the HTTP API.
type Handler struct {
	repo    *repository.DataAccessLayer
	gen     generator.Generator
	storage StorageStatus
	log     zerolog.Logger
}

// New creates a Handler. A nil gen disables story generation.
func New(repo *repository.DataAccessLayer, gen generator.Generator, storage StorageStatus, log zerolog.Logger) *Handler {
	if gen == nil {
		gen = generator.Disabled{}
	}
	return &Handler{
		repo:    repo,
		gen:     gen,
		storage: storage,
		log:     log.With().Str("component", "http").Logger(),
	}
}

// NewRouter wires every route. Everything under /api requires an identity from v.
func NewRouter(h *Handler, v auth.Verifier, origins []string, log zerolog.Logger) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.Authenticate(v, log))

	api.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
	api.HandleFunc("/stories/generate", h.GenerateStory).Methods(http.MethodPost)

	api.HandleFunc("/{kind}", h.List).Methods(http.MethodGet)
	api.HandleFunc("/{kind}", h.Create).Methods(http.MethodPost)
	api.HandleFunc("/{kind}/count", h.Count).Methods(http.MethodGet)
	api.HandleFunc("/{kind}/{id}", h.Get).Methods(http.MethodGet)
	api.HandleFunc("/{kind}/{id}", h.Update).Methods(http.MethodPut)
	api.HandleFunc("/{kind}/{id}", h.Delete).Methods(http.MethodDelete)

	// CORS wraps the router so preflight requests are answered before route matching.
	return middleware.Recover(log)(middleware.EnableCORS(origins)(router))
}
