// Package server provides the HTTP API for Cortex.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cortexbase/cortex/internal/config"
	"github.com/cortexbase/cortex/internal/generate"
	"github.com/cortexbase/cortex/internal/ingest"
	"github.com/cortexbase/cortex/internal/retrieval"
	"github.com/cortexbase/cortex/internal/storage"
	"github.com/cortexbase/cortex/internal/vector"
)

// Server is the HTTP server for the Cortex API.
type Server struct {
	ingestor     *ingest.Ingestor
	fileIngestor *ingest.FileIngestor
	retriever    *retrieval.Retriever
	generator    generate.Generator // nil when generation is disabled
	store        storage.Storage
	index        vector.Index
	config       *config.Config
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies. generator may be
// nil; /query then returns sources without an answer.
func NewServer(
	ingestor *ingest.Ingestor,
	fileIngestor *ingest.FileIngestor,
	retriever *retrieval.Retriever,
	generator generate.Generator,
	store storage.Storage,
	index vector.Index,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingestor:     ingestor,
		fileIngestor: fileIngestor,
		retriever:    retriever,
		generator:    generator,
		store:        store,
		index:        index,
		config:       cfg,
		logger:       logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/ingest", s.handleIngestText)
	r.Post("/api/v1/upload", s.handleUpload)
	r.Post("/api/v1/query", s.handleQuery)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Get("/api/v1/documents/{id}/chunks", s.handleGetDocumentChunks)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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
