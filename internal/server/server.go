// Package server provides the HTTP API for Wakaru.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/wakaru/internal/config"
	"github.com/hyperjump/wakaru/internal/knowledge"
	"github.com/hyperjump/wakaru/internal/router"
)

// Server is the HTTP server for the Wakaru API.
type Server struct {
	router *router.Router
	store  *knowledge.Store
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	rt *router.Router,
	store *knowledge.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		router: rt,
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// Routes builds the HTTP handler. Exposed separately so tests can drive it
// through httptest without binding a port.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/analyze", s.handleAnalyze)
	r.Post("/api/v1/knowledge", s.handleAddKnowledge)
	r.Post("/api/v1/knowledge/query", s.handleQueryKnowledge)
	r.Get("/api/v1/knowledge", s.handleListKnowledge)
	r.Delete("/api/v1/knowledge/{id}", s.handleDeleteKnowledge)
	r.Delete("/api/v1/knowledge", s.handleClearKnowledge)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
