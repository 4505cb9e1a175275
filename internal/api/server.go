// Package api exposes question answering over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Yates-Labs/scholar/internal/orchestrator"
)

// Asker answers one question. *orchestrator.Pipeline satisfies it.
type Asker interface {
	Ask(ctx context.Context, query string) (*orchestrator.AskResult, error)
}

// Server is the HTTP API server for scholar.
type Server struct {
	router chi.Router
	asker  Asker
	log    *slog.Logger
}

// NewServer creates and configures the HTTP server.
func NewServer(asker Asker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		asker: asker,
		log:   log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Post("/query", s.handleQuery)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
