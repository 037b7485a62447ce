package api

import (
	"net/http"
	"strconv"
	"time"

	"currency-features/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	responseSize int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.responseSize += size
	return size, err
}

// routePattern returns the matched chi pattern, falling back to the raw path
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// MetricsMiddleware records HTTP metrics for each request and logs failed ones
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := newResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		pattern := routePattern(r)
		duration := time.Since(start)
		observability.GetMetrics().RecordHTTPRequest(r.Method, pattern, strconv.Itoa(wrapped.statusCode), duration, wrapped.responseSize)

		if wrapped.statusCode >= http.StatusInternalServerError {
			observability.Warn("request failed",
				"method", r.Method,
				"route", pattern,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()))
		} else {
			observability.Debug("request served",
				"method", r.Method,
				"route", pattern,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds())
		}
	})
}
