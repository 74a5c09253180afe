// Package server exposes the Jarvis voice-assistant pipeline over HTTP.
//
// The surface is small: one POST endpoint for complete audio queries, one
// websocket endpoint for clients that stream Opus packets and want response
// chunks pushed back as they become available, plus the operational
// endpoints (/healthz, /readyz, /metrics).
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumen-edu/jarvis/internal/health"
	"github.com/lumen-edu/jarvis/internal/observe"
	"github.com/lumen-edu/jarvis/internal/pipeline"
)

// Option is a functional option for [New].
type Option func(*Server)

// WithHealth installs readiness checkers on the /readyz endpoint.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger overrides the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// Server handles the assistant HTTP surface. Safe for concurrent use.
type Server struct {
	pipe    *pipeline.Coordinator
	health  *health.Handler
	metrics *observe.Metrics
	log     *slog.Logger
}

// New creates a [Server] around the given pipeline coordinator.
func New(pipe *pipeline.Coordinator, opts ...Option) *Server {
	s := &Server{
		pipe:    pipe,
		health:  health.New(),
		metrics: observe.DefaultMetrics(),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the fully wired HTTP handler: routes, panic recovery, and
// the tracing/metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/assistant/query", s.handleQuery)
	mux.HandleFunc("GET /ws/assistant", s.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)

	var h http.Handler = mux
	h = s.recoverer(h)
	h = observe.Middleware(s.metrics)(h)
	return h
}

// recoverer converts panics in downstream handlers into a generic 500
// response instead of tearing down the connection.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.ErrorContext(r.Context(), "handler panicked",
					"path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"status": "error",
					"error":  "internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with the given status code. Encoding failures after the
// header is written can only be logged.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encoding failed", "error", err)
	}
}
