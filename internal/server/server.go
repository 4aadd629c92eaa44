// Package server exposes the virtual filesystem over a small REST surface.
// Each filesystem operation maps onto one endpoint; session scoping comes
// from an optional thread_id parameter. Auth and rate limiting belong to the
// surrounding deployment, not here.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/scratchfs/internal/offload"
	"github.com/spigell/scratchfs/internal/session"
)

// Config holds the listener settings.
type Config struct {
	Address string `mapstructure:"address"`
}

// Server wires the session registry and offload policy into HTTP handlers.
type Server struct {
	registry *session.Registry
	policy   *offload.Policy
	logger   *zap.Logger
	httpSrv  *http.Server
}

// New creates a server. The registry and policy are owned by the caller and
// may be shared with other consumers.
func New(cfg *Config, registry *session.Registry, policy *offload.Policy, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		registry: registry,
		policy:   policy,
		logger:   logger,
	}

	address := ":8080"
	if cfg != nil && cfg.Address != "" {
		address = cfg.Address
	}

	s.httpSrv = &http.Server{
		Addr:              address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler builds the route table. Exposed separately so tests can drive the
// server through httptest without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /fs/ls", s.handleLs)
	mux.HandleFunc("GET /fs/read", s.handleRead)
	mux.HandleFunc("POST /fs/write", s.handleWrite)
	mux.HandleFunc("POST /fs/edit", s.handleEdit)
	mux.HandleFunc("DELETE /fs/rm", s.handleRm)
	mux.HandleFunc("POST /fs/grep", s.handleGrep)
	mux.HandleFunc("GET /fs/glob", s.handleGlob)
	mux.HandleFunc("POST /fs/offload", s.handleOffload)
	mux.HandleFunc("GET /fs/offloaded/{tool_call_id}", s.handleGetOffloaded)
	mux.HandleFunc("GET /fs/export", s.handleExport)
	mux.HandleFunc("POST /fs/restore", s.handleRestore)

	return s.withLogging(mux)
}

// Start runs the listener until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("starting the http server", zap.String("address", s.httpSrv.Addr))

	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping the http server")
	return s.httpSrv.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.logger.Debug("handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
