// Package server provides the HTTP API for metricmap.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/finlens/metricmap/internal/config"
	"github.com/finlens/metricmap/internal/embedding"
	"github.com/finlens/metricmap/internal/mapping"
	"github.com/finlens/metricmap/internal/store"
)

// Server is the HTTP server for the metricmap API.
type Server struct {
	pipeline *mapping.Pipeline
	remote   *embedding.RemoteClient // optional
	store    *store.Store            // optional
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. remote and store
// may be nil when those tiers are not configured.
func NewServer(
	pipeline *mapping.Pipeline,
	remote *embedding.RemoteClient,
	st *store.Store,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline: pipeline,
		remote:   remote,
		store:    st,
		config:   cfg,
		logger:   logger,
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/map", s.handleMap)
	r.Post("/api/v1/health-check", s.handleHealthCheck)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/vocabulary", s.handleVocabulary)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router(),
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
