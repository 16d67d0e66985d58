// Package api serves the TLEscope HTTP surface: probes, metrics, the
// latest simulation snapshot, per-satellite queries, control and the
// snapshot streams.
package api

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aweeri/TLEscope/internal/auth"
	"github.com/aweeri/TLEscope/internal/health"
	"github.com/aweeri/TLEscope/internal/httputil"
	"github.com/aweeri/TLEscope/internal/metrics"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/aweeri/TLEscope/internal/sim"
	"github.com/aweeri/TLEscope/internal/stream"
	"github.com/aweeri/TLEscope/internal/tle"
)

// SimRunner is the part of the simulation runner the API needs.
type SimRunner interface {
	Snapshot() *sim.Snapshot
	Do(ctx context.Context, cmd sim.Command) error
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Runner   SimRunner
	Store    *tle.Store
	Strategy propagation.Strategy
	Stream   *stream.Handler

	// Settings is served verbatim at /api/v1/settings when non-nil.
	Settings any

	// PassesLimiter throttles pass prediction per client IP when set.
	PassesLimiter *httputil.IPRateLimiter
	TrustProxy    bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, deps Deps, logger *slog.Logger, authCfg auth.Config) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(deps, logger, authCfg),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Streams clear their own write deadline.
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(deps Deps, logger *slog.Logger, authCfg auth.Config) http.Handler {
	if deps.Strategy == nil {
		deps.Strategy = propagation.Kepler{}
	}
	h := &handlers{deps: deps, logger: logger}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(h.snapshotReady, h.datasetReady))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/snapshot", h.snapshot)
	mux.HandleFunc("GET /api/v1/satellites", h.satellites)
	mux.HandleFunc("GET /api/v1/satellites/{name}/apsis", h.apsis)
	mux.HandleFunc("GET /api/v1/satellites/{name}/ring", h.ring)

	var passes http.Handler = http.HandlerFunc(h.passes)
	if deps.PassesLimiter != nil {
		passes = deps.PassesLimiter.Middleware(deps.TrustProxy)(passes)
	}
	mux.Handle("GET /api/v1/satellites/{name}/passes", passes)

	mux.HandleFunc("GET /api/v1/markers", h.markers)
	mux.HandleFunc("POST /api/v1/control", h.control)
	mux.HandleFunc("GET /api/v1/tle/metadata", h.tleMetadata)
	mux.HandleFunc("GET /api/v1/tle/groups", h.tleGroups)
	if deps.Settings != nil {
		mux.HandleFunc("GET /api/v1/settings", h.settings)
	}

	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/snapshots", deps.Stream.HandleSnapshots)
		mux.HandleFunc("GET /api/v1/ws", deps.Stream.HandleWebSocket)
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger, deps.TrustProxy)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server. A graceful shutdown is not an
// error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains connections until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// Hijack hands the connection to the websocket upgrader.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(sr.ResponseWriter).Hijack()
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
