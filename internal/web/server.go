// Package web provides the HTTP server exposing a collection endpoint.
//
// Routes:
//
//	GET /healthz
//	GET /{collection}              paginated page as {data, totalPages, totalRecords}
//	GET /{collection}?export=true  whole collection as CSV
//	GET /{collection}/{id}         single row
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/gridview/internal/config"
	"github.com/JonMunkholm/gridview/internal/store"
	mw "github.com/JonMunkholm/gridview/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for one collection.
type Server struct {
	store   store.Store
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	exports *ExportLimiter
}

// NewServer creates a new Server instance.
func NewServer(st store.Store, cfg *config.Config) *Server {
	s := &Server{
		store:   st,
		cfg:     cfg,
		router:  chi.NewRouter(),
		exports: NewExportLimiter(cfg.Server.MaxConcurrentExports, cfg.Server.ExportWait),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Server.TrustedProxyList()))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/"+s.cfg.Collection.Name, func(r chi.Router) {
		r.Use(mw.Latency(s.cfg.Server.Latency))

		r.Get("/", s.handleCollection)
		r.With(middleware.Timeout(s.cfg.Server.RequestTimeout)).Get("/{id}", s.handleRecord)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server starting", "addr", s.server.Addr, "collection", s.cfg.Collection.Name)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server. Running exports are given until
// ctx ends to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.exports.WaitForDrain(ctx); err != nil {
		slog.Warn("exports still running at shutdown", "active", s.exports.Active(), "error", err)
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
