// Package http provides the HTTP server infrastructure.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/0xcro3dile/ragstream/internal/domain/ports"
	"github.com/0xcro3dile/ragstream/internal/domain/usecases"
	"github.com/0xcro3dile/ragstream/internal/logger"
)

// Options tunes the listener.
type Options struct {
	Addr string
	// WriteTimeout must outlast the longest generation.
	WriteTimeout time.Duration
	// MaxUploadBytes caps a single multipart upload.
	MaxUploadBytes int64
	// Converter, when set, is checked by GET /health.
	Converter HealthChecker
}

// HealthChecker is a dependency GET /health checks.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// chunkCounter is implemented by stores that can report their size.
type chunkCounter interface {
	Count(ctx context.Context) (int, error)
}

// Server is the HTTP server for the RAG API.
type Server struct {
	query  *usecases.QueryUseCase
	ingest *usecases.IngestUseCase
	store  ports.ChunkStore
	log    *logger.Logger
	opts   Options
}

// NewServer creates a new HTTP server.
func NewServer(
	queryUC *usecases.QueryUseCase,
	ingestUC *usecases.IngestUseCase,
	store ports.ChunkStore,
	log *logger.Logger,
	opts Options,
) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = time.Hour + time.Minute
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		query:  queryUC,
		ingest: ingestUC,
		store:  store,
		log:    log.With("component", "http"),
		opts:   opts,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(s.log))
	r.Use(corsAllowAll())

	r.GET("/health", s.handleHealth)
	r.GET("/models", s.handleModels)
	r.GET("/config", s.handleConfig)

	r.POST("/query", s.handleQuery)
	r.POST("/search", s.handleSearch)

	docs := r.Group("/documents")
	{
		docs.GET("", s.handleListDocuments)
		docs.POST("/clear", s.handleClearDocuments)
		docs.POST("/upload", s.handleUpload)
	}
	return r
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      s.opts.WriteTimeout,
	}

	s.log.Info("server starting", "addr", s.opts.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("shutdown", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
