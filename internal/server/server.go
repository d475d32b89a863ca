// Package server provides the HTTP API for notesearch.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/notesearch/internal/config"
	"github.com/hyperjump/notesearch/internal/fulltext"
	"github.com/hyperjump/notesearch/internal/indexer"
	"github.com/hyperjump/notesearch/internal/refresh"
	"github.com/hyperjump/notesearch/internal/storage"
)

// RunHistory reports the most recent full refresh.
type RunHistory interface {
	LastRun() *refresh.Run
}

// Server is the HTTP server for the notesearch API.
type Server struct {
	engine  fulltext.Engine
	indexer *indexer.Indexer
	storage storage.Storage
	config  *config.Config
	logger  *zap.Logger
	runs    RunHistory
	server  *http.Server

	// configPath, when set, is where language changes are persisted.
	configPath string
	configMu   sync.Mutex
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRunHistory exposes the last refresh in the status endpoint.
func WithRunHistory(r RunHistory) ServerOption {
	return func(s *Server) { s.runs = r }
}

// WithConfigPath persists language changes made through the API to path.
func WithConfigPath(path string) ServerOption {
	return func(s *Server) { s.configPath = path }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine fulltext.Engine,
	idx *indexer.Indexer,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...ServerOption,
) *Server {
	s := &Server{
		engine:  engine,
		indexer: idx,
		storage: store,
		config:  cfg,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Post("/search", s.handleSearch)
		r.Get("/count", s.handleCount)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/languages", s.handleLanguages)
		r.Put("/languages", s.handleSetLanguage)
		r.Get("/status", s.handleStatus)

		r.Route("/records/{kind}", func(r chi.Router) {
			r.Get("/", s.handleListRecords)
			r.Post("/", s.handleCreateRecord)
			r.Get("/{id}", s.handleGetRecord)
			r.Put("/{id}", s.handleUpdateRecord)
			r.Delete("/{id}", s.handleDeleteRecord)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops. A server stopped
// through Stop returns nil.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
