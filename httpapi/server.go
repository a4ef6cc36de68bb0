// Package httpapi exposes the query service as a JSON HTTP API.
//
// Endpoints:
//   - GET  /api/search?q=&type=&limit=
//   - GET  /api/ask?q=&limit=
//   - GET  /api/recent?limit=
//   - GET  /api/file?path=
//   - GET  /api/files?pattern=&limit=
//   - GET  /api/stats
//   - GET  /api/health
//   - POST /api/vacuum
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/lexandro/contentindex/indexer"
	"github.com/lexandro/contentindex/query"
)

const shutdownTimeout = 5 * time.Second

// VacuumFunc runs one full vacuum pass.
type VacuumFunc func(ctx context.Context) (indexer.VacuumResult, error)

// Server serves the query API.
type Server struct {
	service *query.Service
	vacuum  VacuumFunc
	logger  *slog.Logger
	router  *http.ServeMux
}

// New creates a Server. A nil vacuum leaves POST /api/vacuum unregistered.
func New(service *query.Service, vacuum VacuumFunc, logger *slog.Logger) *Server {
	s := &Server{
		service: service,
		vacuum:  vacuum,
		logger:  logger,
		router:  http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /api/search", s.handleSearch)
	s.router.HandleFunc("GET /api/ask", s.handleAsk)
	s.router.HandleFunc("GET /api/recent", s.handleRecent)
	s.router.HandleFunc("GET /api/file", s.handleFile)
	s.router.HandleFunc("GET /api/files", s.handleFiles)
	s.router.HandleFunc("GET /api/stats", s.handleStats)
	s.router.HandleFunc("GET /api/health", s.handleHealth)
	if s.vacuum != nil {
		s.router.HandleFunc("POST /api/vacuum", s.handleVacuum)
	}
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return chain(
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		corsMiddleware(),
	)(s.router)
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	s.logger.Info("http api listening", "addr", listener.Addr().String())

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http api shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	response, err := s.service.Search(params.Get("q"), params.Get("type"), limit)
	s.respond(w, response, err)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	response, err := s.service.Ask(r.URL.Query().Get("q"), limit)
	s.respond(w, response, err)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	response, err := s.service.Recent(limit)
	s.respond(w, response, err)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	response, err := s.service.File(r.URL.Query().Get("path"))
	s.respond(w, response, err)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	response, err := s.service.Files(r.URL.Query().Get("pattern"), limit)
	s.respond(w, response, err)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	response, err := s.service.Stats()
	s.respond(w, response, err)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Health())
}

func (s *Server) handleVacuum(w http.ResponseWriter, r *http.Request) {
	result, err := s.vacuum(r.Context())
	if err != nil && !result.Interrupted {
		s.logger.Error("vacuum request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// limit parses the optional limit parameter. It writes a 400 and reports
// false when the value is not a positive integer.
func (s *Server) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: fmt.Sprintf("invalid limit %q", raw),
			Hint:  fmt.Sprintf("use a positive integer up to %d", query.MaxLimit),
		})
		return 0, false
	}
	return limit, true
}

func (s *Server) respond(w http.ResponseWriter, response any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, response)
		return
	}

	body := errorBody{Error: err.Error()}
	var queryErr *query.Error
	if errors.As(err, &queryErr) {
		body = errorBody{Error: queryErr.Message, Hint: queryErr.Hint}
	}

	code := statusCode(query.KindOf(err))
	if code == http.StatusInternalServerError {
		s.logger.Error("query failed", "error", err)
	}
	writeJSON(w, code, body)
}

type errorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func statusCode(kind query.Kind) int {
	switch kind {
	case query.KindInvalid:
		return http.StatusBadRequest
	case query.KindNotFound:
		return http.StatusNotFound
	case query.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
