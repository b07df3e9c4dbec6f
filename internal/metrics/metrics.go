package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sowa_backend_requests_total",
			Help: "Requests sent to the studio backend.",
		},
		[]string{"operation", "status"},
	)

	backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sowa_backend_request_duration_seconds",
			Help:    "Latency of requests sent to the studio backend.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	pageRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sowa_http_requests_total",
			Help: "Requests served by the site.",
		},
		[]string{"method", "route", "status"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sowa_viewer_sessions",
			Help: "Viewer sessions held in memory.",
		},
	)
)

func init() {
	registry.MustRegister(
		backendRequests,
		backendDuration,
		pageRequests,
		activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveBackend records one backend call. status is the HTTP status code,
// or "error" for transport failures.
func ObserveBackend(operation, status string, d time.Duration) {
	backendRequests.WithLabelValues(operation, status).Inc()
	backendDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObservePage records one served request.
func ObservePage(method, route, status string) {
	pageRequests.WithLabelValues(method, route, status).Inc()
}

// SetSessions sets the number of in-memory viewer sessions.
func SetSessions(n int) {
	activeSessions.Set(float64(n))
}

// Handler serves the metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
