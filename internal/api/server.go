// Package api exposes the coverage engine over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/SizovOleg/eo-services/internal/auth"
	"github.com/SizovOleg/eo-services/internal/cache"
	"github.com/SizovOleg/eo-services/internal/coverage"
	"github.com/SizovOleg/eo-services/internal/health"
	"github.com/SizovOleg/eo-services/internal/httputil"
	"github.com/SizovOleg/eo-services/internal/jobs"
	"github.com/SizovOleg/eo-services/internal/metrics"
	"github.com/SizovOleg/eo-services/internal/optimize"
	"github.com/SizovOleg/eo-services/internal/sweep"
)

// Config holds HTTP-level settings.
type Config struct {
	Addr          string
	RunTimeout    time.Duration // bound on synchronous simulate/optimize/sweep calls
	MaxSweep      int           // requests per sweep call
	MaxBodyBytes  int64
	RatePerMinute float64 // simulation submissions per client; 0 disables limiting
	RateBurst     int
	TrustProxy    bool
	Auth          auth.Config
}

// Deps are the long-lived components the handlers drive.
type Deps struct {
	Simulator *coverage.Simulator
	Optimizer *optimize.Optimizer
	Sweeper   *sweep.WorkerPool
	Jobs      *jobs.Manager
	Cache     *cache.ResultCache
	Ready     *health.Readiness
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	limiter    *httputil.IPRateLimiter
	cfg        Config
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 60 * time.Second
	}
	if cfg.MaxSweep <= 0 {
		cfg.MaxSweep = 16
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if deps.Ready == nil {
		deps.Ready = &health.Readiness{}
	}

	s := &Server{cfg: cfg, deps: deps, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", deps.Ready.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/regions", s.handleRegions)
	mux.HandleFunc("GET /api/v1/orbit", s.handleOrbit)
	mux.HandleFunc("GET /api/v1/passes", s.handlePasses)
	mux.HandleFunc("POST /api/v1/simulate", s.handleSimulate)
	mux.HandleFunc("POST /api/v1/optimize", s.handleOptimize)
	mux.HandleFunc("POST /api/v1/sweep", s.handleSweep)
	mux.HandleFunc("POST /api/v1/jobs", s.handleSubmitJob)
	mux.HandleFunc("GET /api/v1/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /api/v1/jobs/{id}", s.handleCancelJob)
	mux.HandleFunc("POST /api/v1/tle/seed", s.handleSeed)
	mux.HandleFunc("GET /api/v1/cache", s.handleCacheStats)

	// Build middleware chain: metrics -> logging -> auth -> rate limit -> mux.
	var handler http.Handler = mux
	if cfg.RatePerMinute > 0 {
		s.limiter = httputil.NewIPRateLimiter(cfg.RatePerMinute, cfg.RateBurst)
		handler = s.limiter.Middleware(cfg.TrustProxy, []string{http.MethodPost}, metrics.IncRateLimited)(handler)
	}
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RunTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// ForgetIdleClients drops rate-limit state for clients idle longer than idle.
func (s *Server) ForgetIdleClients(idle time.Duration) {
	if s.limiter == nil {
		return
	}
	if n := s.limiter.Forget(idle); n > 0 {
		s.logger.Debug("rate limiter pruned", "clients_removed", n)
	}
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

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
