package web

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/sowa/internal/metrics"
)

type webContextKey string

const routeKey webContextKey = "route"

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// routeLabel records pattern as the metrics route of requests served by h.
func routeLabel(pattern string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route, ok := r.Context().Value(routeKey).(*string); ok {
			*route = pattern
		}
		h.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs HTTP requests with method, path, status, and
// duration, and counts them per route.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		route := ""
		r = r.WithContext(context.WithValue(r.Context(), routeKey, &route))
		next.ServeHTTP(rec, r)

		if route == "" {
			route = r.Pattern
		}
		if route == "" {
			route = "unmatched"
		}
		metrics.ObservePage(r.Method, route, strconv.Itoa(rec.status))

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
