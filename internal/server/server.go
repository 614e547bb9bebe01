// Package server exposes sessions, reports, questions and charts over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/golovatskygroup/data-lens/internal/apperr"
	"github.com/golovatskygroup/data-lens/internal/artifacts"
	"github.com/golovatskygroup/data-lens/internal/assistant"
	"github.com/golovatskygroup/data-lens/internal/audit"
	"github.com/golovatskygroup/data-lens/internal/config"
	"github.com/golovatskygroup/data-lens/internal/session"
)

type Server struct {
	cfg        config.ServerConfig
	asst       *assistant.Assistant
	sessions   *session.Manager
	store      *artifacts.Store
	audit      *audit.Store
	log        *zap.Logger
	httpServer *http.Server
}

// Options carries the optional collaborators.
type Options struct {
	Artifacts *artifacts.Store
	Audit     *audit.Store
}

func New(cfg config.ServerConfig, asst *assistant.Assistant, sessions *session.Manager, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = config.Default().Server.MaxUploadBytes
	}
	s := &Server{
		cfg:      cfg,
		asst:     asst,
		sessions: sessions,
		store:    opts.Artifacts,
		audit:    opts.Audit,
		log:      log,
	}
	s.httpServer = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Model round trips and chart runs can take a while.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("GET /{$}", s.handleIndex)

	mux.HandleFunc("POST /api/sessions", s.handleUpload)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/reports/{kind}", s.handleReport)
	mux.HandleFunc("GET /api/sessions/{id}/reports/{kind}/download", s.handleReportDownload)
	mux.HandleFunc("POST /api/sessions/{id}/ask", s.handleAsk)
	mux.HandleFunc("POST /api/sessions/{id}/charts", s.handleChart)
	mux.HandleFunc("GET /api/sessions/{id}/decisions", s.handleDecisions)

	mux.HandleFunc("GET /artifacts/{id}", s.handleArtifact)
	return s.logRequests(mux)
}

// Start serves until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

type errorBody struct {
	Error       string      `json:"error"`
	Kind        apperr.Kind `json:"kind,omitempty"`
	Recoverable bool        `json:"recoverable"`
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	switch apperr.KindOf(err) {
	case apperr.KindUpload:
		return http.StatusBadRequest
	case apperr.KindRoutingParse, apperr.KindEvaluation:
		return http.StatusUnprocessableEntity
	case apperr.KindGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorBody{
		Error:       err.Error(),
		Kind:        apperr.KindOf(err),
		Recoverable: apperr.IsRecoverable(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
