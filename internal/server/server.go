// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/KaramelBytes/dfops/internal/engine"
)

// DefaultMaxUploadBytes bounds multipart request bodies.
const DefaultMaxUploadBytes = 200 << 20

// Options configures the HTTP adapter.
type Options struct {
	// RequestTimeout cancels the request context; 0 disables it.
	RequestTimeout time.Duration
	MaxUploadBytes int64
	// UploadDir holds the per-request upload directories; "" means os.TempDir().
	UploadDir string
}

// Server routes HTTP requests to an Engine.
type Server struct {
	engine *engine.Engine
	opts   Options
	router *chi.Mux
	server *http.Server
}

// New creates a Server. JSON requests resolve files with the engine's
// own Resolver; multipart uploads are resolved within their upload dir.
func New(e *engine.Engine, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{
		engine: e,
		opts:   opts,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	if s.opts.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.opts.RequestTimeout))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/functions", s.handleFunctions)
		r.Post("/process", s.handleProcess)
		r.Post("/operations/{name}", s.handleOperation)
	})
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	slog.Info("server starting", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
