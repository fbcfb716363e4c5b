// Package server provides the HTTP API for cortexd.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/config"
	"github.com/sourknives/cortex-memory/internal/memory"
	"github.com/sourknives/cortex-memory/internal/search"
	"github.com/sourknives/cortex-memory/internal/storage"
)

// Server is the HTTP server for the memory API.
type Server struct {
	processor *memory.Processor
	engine    *search.Engine
	storage   storage.Storage
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	processor *memory.Processor,
	engine *search.Engine,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		processor: processor,
		engine:    engine,
		storage:   store,
		config:    cfg,
		logger:    logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/memories", s.handleStoreMemory)
	r.Get("/api/v1/memories/{id}", s.handleGetMemory)
	r.Delete("/api/v1/memories/{id}", s.handleDeleteMemory)
	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/feedback", s.handleFeedback)
	r.Get("/api/v1/projects", s.handleListProjects)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
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
