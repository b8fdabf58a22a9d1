// Package server provides the HTTP API for Ruiji.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/similarity"
)

// Server is the HTTP server for the Ruiji API.
type Server struct {
	indexes   map[string]*similarity.Index
	keyToName map[string]string
	registry  *similarity.Registry
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server over the named indexes. All indexes must be
// registered in registry; bulk update goes through it.
func NewServer(
	indexes map[string]*similarity.Index,
	registry *similarity.Registry,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	keyToName := make(map[string]string, len(indexes))
	for name, idx := range indexes {
		keyToName[idx.Key().String()] = name
	}
	return &Server{
		indexes:   indexes,
		keyToName: keyToName,
		registry:  registry,
		config:    cfg,
		logger:    logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	s.logger.Info("server listening", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/api/v1/match", s.handleMatch)
	r.Post("/api/v1/update", s.handleUpdateAll)
	r.Post("/api/v1/indexes/{name}/update", s.handleUpdateOne)
	r.Get("/api/v1/indexes", s.handleIndexes)
	r.Get("/health", s.handleHealth)
	return r
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
