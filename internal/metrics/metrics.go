// Package metrics exposes the service's Prometheus collectors.
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
			Name: "darknet_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"route", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "darknet_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "darknet_upstream_requests_total",
			Help: "Requests issued to the space-track catalog, by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "darknet_refresh_total",
			Help: "Cache refresh runs by result.",
		},
		[]string{"result"},
	)

	refreshDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "darknet_refresh_duration_seconds",
			Help:    "Duration of fetch+aggregate refresh runs in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "darknet_cache_hits_total",
			Help: "Reads served from a fresh cache entry.",
		},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "darknet_cache_misses_total",
			Help: "Reads that observed an empty or stale cache.",
		},
	)

	cacheAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "darknet_cache_age_seconds",
			Help: "Age of the cached result set in seconds.",
		},
	)

	cacheObjects = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "darknet_cache_objects",
			Help: "Number of processed objects in the cached result set.",
		},
	)

	objectsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "darknet_objects_dropped_total",
			Help: "Catalog records dropped during aggregation, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		upstreamRequestsTotal,
		refreshTotal,
		refreshDurationSeconds,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheAgeSeconds,
		cacheObjects,
		objectsDroppedTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncUpstreamRequest records one upstream catalog request.
func IncUpstreamRequest(endpoint, outcome string) {
	upstreamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// ObserveRefresh records one refresh run.
func ObserveRefresh(d time.Duration, result string) {
	refreshTotal.WithLabelValues(result).Inc()
	refreshDurationSeconds.Observe(d.Seconds())
}

// IncCacheHit records a read served from a fresh entry.
func IncCacheHit() {
	cacheHitsTotal.Inc()
}

// IncCacheMiss records a read that observed an empty or stale cache.
func IncCacheMiss() {
	cacheMissesTotal.Inc()
}

// SetCacheAge publishes the current cache entry age.
func SetCacheAge(seconds float64) {
	cacheAgeSeconds.Set(seconds)
}

// SetCacheObjects publishes the cached object count.
func SetCacheObjects(n int) {
	cacheObjects.Set(float64(n))
}

// IncObjectsDropped records a record dropped during aggregation.
func IncObjectsDropped(reason string) {
	objectsDroppedTotal.WithLabelValues(reason).Inc()
}

// knownRoutes are the exact paths this service serves. Anything else
// collapses to "other" so scanners cannot inflate label cardinality.
var knownRoutes = map[string]bool{
	"/healthz":               true,
	"/readyz":                true,
	"/metrics":               true,
	"/api/v1/debris":         true,
	"/api/v1/debris/refresh": true,
	"/api/v1/debris/stats":   true,
}

// normalizeRoute maps a request path to a bounded metric label.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	// Tolerate a single trailing slash on known routes.
	if trimmed := strings.TrimSuffix(path, "/"); trimmed != path && knownRoutes[trimmed] {
		return trimmed
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
