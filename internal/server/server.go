// Package server exposes the application context over HTTP: intents from the
// presentation layer come in as requests, and collection changes and notices
// go out over a websocket.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pauljones0/harvester/internal/app"
	"github.com/pauljones0/harvester/internal/config"
	"github.com/pauljones0/harvester/internal/models"
	"github.com/pauljones0/harvester/internal/scriptgen"
)

type Server struct {
	app        *app.App
	scripts    *scriptgen.Generator
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	httpServer *http.Server
	handler    http.Handler
	now        func() time.Time
}

func New(cfg *config.Config, a *app.App, scripts *scriptgen.Generator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		app:     a,
		scripts: scripts,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		now: time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/posts", s.handleListPosts)
	mux.HandleFunc("PUT /api/segment", s.handleSetSegment)
	mux.HandleFunc("POST /api/ingest/file", s.handleIngestFile)
	mux.HandleFunc("GET /api/paste", s.handleGetPaste)
	mux.HandleFunc("PUT /api/paste", s.handleStagePaste)
	mux.HandleFunc("POST /api/paste/ingest", s.handleIngestPaste)
	mux.HandleFunc("POST /api/sample", s.handleLoadSample)
	mux.HandleFunc("POST /api/posts/{id}/star", s.handleToggleStar)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/scraper-script", s.handleScraperScript)
	mux.HandleFunc("GET /api/session", s.handleGetSession)
	mux.HandleFunc("POST /api/session", s.handleSignIn)
	mux.HandleFunc("DELETE /api/session", s.handleSignOut)
	mux.HandleFunc("GET /api/notices", s.handleNotices)
	mux.HandleFunc("GET /api/live", s.handleLive)
	s.handler = withLogging(logger, mux)

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.handler,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

// writeAppError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		parseErr *models.ParseError
		authErr  *models.AuthError
	)
	switch {
	case errors.As(err, &parseErr):
		writeError(w, http.StatusBadRequest, "ParseError", err.Error())
	case errors.As(err, &authErr):
		writeError(w, http.StatusUnauthorized, "AuthError", err.Error())
	case errors.Is(err, models.ErrPostNotFound):
		writeError(w, http.StatusNotFound, "NotFound", err.Error())
	case errors.Is(err, app.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "Unavailable", err.Error())
	default:
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "internal error")
	}
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade reach the underlying connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.status = http.StatusSwitchingProtocols
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
