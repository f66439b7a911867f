// Package http provides the HTTP transport layer for SummaryHub. The
// server wires the orchestrator, segmenter, partial-result handler,
// and recovery service behind a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/kart-io/summaryhub/pkg/logger"
	"github.com/kart-io/summaryhub/pkg/orchestrator"
	"github.com/kart-io/summaryhub/pkg/recovery"
	"github.com/kart-io/summaryhub/pkg/segmenter"
	"github.com/kart-io/summaryhub/transport/http/handlers"
	"github.com/kart-io/summaryhub/transport/http/middleware"
)

// Config holds HTTP server configuration
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	EnableCORS     bool
}

// DefaultConfig returns the default server configuration. The write
// timeout leaves room for graceful cancellation, which can hold a
// request for the full graceful window.
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
}

// Server serves the SummaryHub API
type Server struct {
	config   *Config
	orch     *orchestrator.Orchestrator
	seg      *segmenter.Segmenter
	recovery *recovery.Service
	logger   logger.Logger
	server   *http.Server
}

// NewServer creates a server around the assembled services
func NewServer(cfg *Config, orch *orchestrator.Orchestrator, seg *segmenter.Segmenter, rec *recovery.Service, log logger.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if log == nil {
		log = logger.Discard
	}
	return &Server{
		config:   cfg,
		orch:     orch,
		seg:      seg,
		recovery: rec,
		logger:   log,
	}
}

// Handler builds the routed handler with the middleware chain applied.
// Exposed separately so tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	batchHandler := handlers.NewBatchHandler(s.orch, s.seg)
	partialHandler := handlers.NewPartialHandler(s.orch.PartialResults())
	healthHandler := handlers.NewHealthHandler(s.recovery)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/batches", batchHandler.Create)
	api.HandleFunc("GET /api/v1/batches", batchHandler.List)
	api.HandleFunc("GET /api/v1/batches/{id}", batchHandler.Get)
	api.HandleFunc("GET /api/v1/batches/{id}/progress", batchHandler.Progress)
	api.HandleFunc("POST /api/v1/batches/{id}/pause", batchHandler.Pause)
	api.HandleFunc("POST /api/v1/batches/{id}/resume", batchHandler.Resume)
	api.HandleFunc("POST /api/v1/batches/{id}/cancel", batchHandler.Cancel)
	api.HandleFunc("POST /api/v1/batches/{id}/recover", healthHandler.Recover)
	api.HandleFunc("GET /api/v1/batches/{id}/requires-recovery", healthHandler.RequiresRecovery)
	api.HandleFunc("GET /api/v1/partial-results", partialHandler.List)
	api.HandleFunc("GET /api/v1/partial-results/{id}", partialHandler.Get)
	api.HandleFunc("POST /api/v1/partial-results/{id}/accept", partialHandler.Accept)
	api.HandleFunc("POST /api/v1/partial-results/{id}/reject", partialHandler.Reject)
	api.HandleFunc("GET /api/v1/partial-results/{id}/continuable", partialHandler.Continuable)

	mux := http.NewServeMux()
	mux.Handle("/api/", middleware.Identity(api))
	mux.HandleFunc("GET /health", healthHandler.Health)

	var handler http.Handler = mux
	if s.config.EnableCORS {
		handler = middleware.CORS(nil)(handler)
	}
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.Correlation(handler)
	return handler
}

// Start blocks serving requests until Stop is called or the listener
// fails
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:           s.config.Addr,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.logger.Info("HTTP server listening", "addr", s.config.Addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop drains in-flight requests and shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
