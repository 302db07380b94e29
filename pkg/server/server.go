// Package server exposes the extraction and reporting pipeline over HTTP
// for tools that cannot shell out to the CLI.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"

	"hoadon/pkg/config"
	"hoadon/pkg/service"
)

// Server handles HTTP requests for document extraction and reporting.
type Server struct {
	config    *config.Config
	logger    *log.Logger
	mux       *http.ServeMux
	processor *service.Processor
	documents sync.Map
}

// New creates a new HTTP server around a fresh pipeline processor.
func New(cfg *config.Config, logger *log.Logger) (*Server, error) {
	processor, err := service.NewProcessor(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Server{
		config:    cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		processor: processor,
	}, nil
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	s.setupRoutes()
	return http.ListenAndServe(addr, s.mux)
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/", s.withLogging(s.handleIndex))
	s.mux.HandleFunc("/healthz", s.withLogging(s.handleHealthz))
	s.mux.HandleFunc("/api/extract", s.withLogging(s.handleExtract))
	s.mux.HandleFunc("/api/documents/", s.withLogging(s.handleDocuments))
	s.mux.HandleFunc("/api/report", s.withLogging(s.handleReport))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.respondError(w, r, http.StatusNotFound, "not found", nil)
		return
	}
	if err := s.writeJSON(w, http.StatusOK, map[string]any{
		"service": "hoadon",
		"endpoints": []string{
			"POST /api/extract",
			"GET /api/documents/<name>",
			"POST /api/report",
			"GET /healthz",
		},
	}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

// --- helpers ---

// writeJSON encodes v as JSON with the given status and writes headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// respondError logs the error and returns a minimal JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		s.logger.Warn("request error", "status", status, "msg", message, "err", err, "method", r.Method, "path", r.URL.Path)
	} else {
		s.logger.Warn("request error", "status", status, "msg", message, "method", r.Method, "path", r.URL.Path)
	}
	_ = s.writeJSON(w, status, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// withLogging wraps a handler to log request start/end and recover panics.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "panic", rec, "method", r.Method, "path", r.URL.Path)
				s.respondError(w, r, http.StatusInternalServerError, "internal server error", fmt.Errorf("panic: %v", rec))
			}
		}()
		next(w, r)
	}
}
