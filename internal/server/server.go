// Package server provides the HTTP API: document upload and Blueprint status,
// generation context, and artifact enrichment.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/db"
	"github.com/jonathan/docdna/internal/enrichment"
	"github.com/jonathan/docdna/internal/generation"
	"github.com/jonathan/docdna/internal/pipeline"
	"github.com/jonathan/docdna/internal/server/ratelimit"
)

// DefaultMaxUploadBytes bounds a multipart document upload
const DefaultMaxUploadBytes = 50 << 20

// Config holds server configuration
type Config struct {
	Port           int
	MaxUploadBytes int64
	// RateLimit defaults to ratelimit.LoadConfig()
	RateLimit *ratelimit.Config
}

// Deps are the services the handlers call
type Deps struct {
	Store    db.Store
	Runner   *pipeline.Runner
	Builder  *generation.Builder
	Enricher *enrichment.Enricher
	// Stages and Pipeline build the one-off runners used by streaming analysis
	Stages   pipeline.Stages
	Pipeline config.Pipeline
	Logger   *slog.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     chi.Router
	deps       Deps
	limiter    *ratelimit.Limiter
	validate   *validator.Validate
	logger     *slog.Logger
	maxUpload  int64
}

// New creates a new server instance
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rl := ratelimit.LoadConfig()
	if cfg.RateLimit != nil {
		rl = *cfg.RateLimit
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		deps:      deps,
		limiter:   ratelimit.NewLimiter(rl),
		validate:  validator.New(),
		logger:    logger,
		maxUpload: cfg.MaxUploadBytes,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.withLogging)
	r.Use(middleware.Recoverer)
	r.Use(s.withCORS)
	r.Use(s.withRateLimit)

	r.Get("/health", s.handleHealth)
	r.Route("/blueprints", func(r chi.Router) {
		r.Post("/", s.handleUploadBlueprint)
		r.Get("/{id}", s.handleGetBlueprint)
	})
	r.Post("/analyze/stream", s.handleAnalyzeStream)
	r.Post("/generation/context", s.handleGenerationContext)
	r.Post("/artifacts/{id}/enrich", s.handleEnrichArtifact)
	s.router = r

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 300 * time.Second, // streaming analysis holds the connection for the whole run
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or the process is interrupted, then shuts down,
// waits for in-flight extraction runs and closes the store.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.Close()
	s.logger.Info("server stopped")
	return nil
}

// Close waits for background runs and releases the limiter and store
func (s *Server) Close() {
	if s.deps.Runner != nil {
		s.deps.Runner.Wait()
	}
	s.limiter.Stop()
	if s.deps.Store != nil {
		s.deps.Store.Close()
	}
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients over their per-route budget
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := s.limiter.Allow(clientID(r), r.URL.Path, r.Method)
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		}
		if !info.Allowed {
			resp := map[string]any{
				"error":   "rate_limit_exceeded",
				"message": "Rate limit exceeded. Please try again later.",
			}
			if info.RetryAfter > 0 {
				secs := int(info.RetryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				resp["retry_after"] = secs
			}
			s.logger.Warn("rate limit exceeded", "client", clientID(r), "path", r.URL.Path)
			s.jsonResponse(w, http.StatusTooManyRequests, resp)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// clientID is the client IP; RealIP has already applied forwarding headers
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("error encoding JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps err to a status code and writes it
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.errorResponse(w, status, err.Error())
}
