// Package api exposes the import pipeline over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/fintrack-dev/fintrack/internal/importer"
)

// DefaultMaxUploadBytes caps preview request bodies when no limit is given.
const DefaultMaxUploadBytes = 10 << 20

// Server routes import requests to an importer.Service.
type Server struct {
	service        *importer.Service
	presets        *importer.Registry
	logger         zerolog.Logger
	maxUploadBytes int64
	router         *chi.Mux
}

// Options configures a Server.
type Options struct {
	Presets        *importer.Registry // defaults to importer.DefaultRegistry()
	Logger         zerolog.Logger
	MaxUploadBytes int64
}

// NewServer creates a Server.
func NewServer(service *importer.Service, opts Options) *Server {
	s := &Server{
		service:        service,
		presets:        opts.Presets,
		logger:         opts.Logger,
		maxUploadBytes: opts.MaxUploadBytes,
		router:         chi.NewRouter(),
	}
	if s.presets == nil {
		s.presets = importer.DefaultRegistry()
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = DefaultMaxUploadBytes
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(requireUser)

		r.Get("/presets", s.handleListPresets)
		r.Post("/import/preview", s.handlePreview)
		r.Post("/import/commit", s.handleCommit)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
