// Package web provides the HTTP server for uploading and converting files.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/csvparse/internal/config"
	"github.com/JonMunkholm/csvparse/internal/core"
	"github.com/JonMunkholm/csvparse/internal/store"
	mw "github.com/JonMunkholm/csvparse/internal/web/middleware"
)

// RunLister lists persisted conversions. *store.Store implements it.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]store.Run, error)
}

// Server is the HTTP server for csvparse.
type Server struct {
	cfg     config.ServerConfig
	service *core.Service
	runs    RunLister
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server. runs may be nil when no database is configured.
func NewServer(cfg config.ServerConfig, service *core.Service, runs RunLister) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		runs:    runs,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Post("/convert", s.handleConvertPage)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/schemas", s.handleListSchemas)
		r.Post("/convert", s.handleConvert)
		r.Get("/runs", s.handleRecentRuns)
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown, including when Shutdown ran first.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.cfg.Addr())
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for running conversions.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.service.Limiter().WaitForDrain(ctx)
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "path", r.URL.Path, "error", err)
	}
}
