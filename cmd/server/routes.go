//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware(s.log))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.config.AllowedOrigins))

	r.Get("/", s.handleRoot)

	// Health endpoints
	r.Get("/health", s.handleHealth)
	r.Get("/api/health/metrics", s.handleMetrics)

	// Reference catalog
	r.Route("/api/references", func(r chi.Router) {
		r.Get("/", s.handleListReferences)
		r.Post("/", s.handleAddReference)
		r.Get("/{id}", s.handleGetReference)
		r.Delete("/{id}", s.handleDeleteReference)
	})

	// Streaming detection
	r.Get("/api/detect", s.handleDetect)

	return r
}

func allowAll(origins []string) bool {
	return len(origins) == 0 || (len(origins) == 1 && origins[0] == "*")
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if allowAll(allowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs each request with its status and duration.
func loggingMiddleware(log snippetdna.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				// Hijacked connections never write a status.
				status = http.StatusSwitchingProtocols
			}
			log.Infof("%s %s from %s -> %d (%s)", r.Method, r.URL.Path, r.RemoteAddr, status,
				time.Since(start).Round(time.Millisecond))
		})
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infof("🚀 SnippetDNA server starting on %s", s.config.Addr)
	s.log.Infof("   Database: %s", s.config.DBPath)
	s.log.Infof("   Sample Rate: %d Hz, threshold %.2f", s.config.SampleRate, s.config.Threshold)
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)
	s.log.Infof("Endpoints:")
	s.log.Infof("   GET    /health                  - Health check")
	s.log.Infof("   GET    /api/health/metrics      - Server metrics")
	s.log.Infof("   GET    /api/references          - List reference snippets")
	s.log.Infof("   POST   /api/references          - Add reference (multipart, WAV or raw PCM)")
	s.log.Infof("   GET    /api/references/{id}     - Get reference by ID")
	s.log.Infof("   DELETE /api/references/{id}     - Delete reference by ID")
	s.log.Infof("   GET    /api/detect              - Websocket detection stream")

	return srv.ListenAndServe()
}
