package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "covsim_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "covsim_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	simulationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "covsim_simulations_total",
			Help: "Simulation runs by mode (run, optimize, rank) and outcome (ok, cancelled).",
		},
		[]string{"mode", "outcome"},
	)

	simulationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "covsim_simulation_duration_seconds",
			Help:    "Wall time of simulation runs in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)

	samplesPropagatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "covsim_samples_propagated_total",
			Help: "Ground-track samples produced by the propagator.",
		},
	)

	gridCellsCoveredRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "covsim_grid_cells_covered_ratio",
			Help: "Covered fraction of the grid in the most recent completed run.",
		},
	)

	jobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "covsim_jobs_active",
			Help: "Asynchronous simulation jobs currently running.",
		},
	)

	resultCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "covsim_result_cache_hits_total",
			Help: "Result cache lookups that found a live entry.",
		},
	)

	resultCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "covsim_result_cache_misses_total",
			Help: "Result cache lookups that found nothing or an expired entry.",
		},
	)

	resultCacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "covsim_result_cache_evictions_total",
			Help: "Result cache entries removed by expiry or capacity.",
		},
	)

	resultCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "covsim_result_cache_entries",
			Help: "Entries currently held in the result cache.",
		},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "covsim_rate_limited_total",
			Help: "Simulation submissions rejected by the per-client rate limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		simulationsTotal,
		simulationDurationSeconds,
		samplesPropagatedTotal,
		gridCellsCoveredRatio,
		jobsActive,
		resultCacheHits,
		resultCacheMisses,
		resultCacheEvictions,
		resultCacheEntries,
		rateLimitedTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSimulation counts one finished run and observes its duration.
func RecordSimulation(mode string, cancelled bool, d time.Duration) {
	outcome := "ok"
	if cancelled {
		outcome = "cancelled"
	}
	simulationsTotal.WithLabelValues(mode, outcome).Inc()
	simulationDurationSeconds.WithLabelValues(mode).Observe(d.Seconds())
}

// AddSamples adds n propagated ground-track samples.
func AddSamples(n int) { samplesPropagatedTotal.Add(float64(n)) }

// SetCoveredRatio records the covered fraction of the last completed grid.
func SetCoveredRatio(r float64) { gridCellsCoveredRatio.Set(r) }

func IncJobsActive() { jobsActive.Inc() }
func DecJobsActive() { jobsActive.Dec() }

func IncResultCacheHits()           { resultCacheHits.Inc() }
func IncResultCacheMisses()         { resultCacheMisses.Inc() }
func AddResultCacheEvictions(n int) { resultCacheEvictions.Add(float64(n)) }
func SetResultCacheEntries(n int)   { resultCacheEntries.Set(float64(n)) }

func IncRateLimited() { rateLimitedTotal.Inc() }

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

var knownRoutes = map[string]bool{
	"/":                true,
	"/healthz":         true,
	"/readyz":          true,
	"/metrics":         true,
	"/api/v1/regions":  true,
	"/api/v1/orbit":    true,
	"/api/v1/passes":   true,
	"/api/v1/simulate": true,
	"/api/v1/optimize": true,
	"/api/v1/sweep":    true,
	"/api/v1/jobs":     true,
	"/api/v1/tle/seed": true,
	"/api/v1/cache":    true,
}

// normalizeRoute maps a request path to a bounded label set: known routes keep
// their path, job IDs collapse to one label and everything else is "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if id, ok := strings.CutPrefix(path, "/api/v1/jobs/"); ok && id != "" && !strings.Contains(id, "/") {
		return "/api/v1/jobs/{id}"
	}
	return "other"
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
