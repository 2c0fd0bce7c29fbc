package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/state", s.handleState)
		r.Get("/history", s.handleHistory)
		r.Get("/ui-config", s.handleUIConfig)

		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeNotFound(w, "no such endpoint")
		})
	})

	// Light UI: index.html at "/", 404 for unknown files.
	if s.panel != nil {
		r.Handle("/*", s.panel)
	}

	return r
}

// buildWSRouter creates the router for the WebSocket listener. Only the
// configured path upgrades; everything else is a 404.
func (s *Server) buildWSRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Get(s.wsCfg.Path, s.hub.ServeHTTP)

	return r
}
