// Package middleware holds the HTTP middleware for the redirect path.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/yyozen/linkgate/pkg/metrics"
)

// Metrics records request count and duration, labeled by method and status.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap the response writer to capture the status code.
		ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(ww.statusCode)
		metrics.RequestDuration.WithLabelValues(r.Method, status).Observe(duration)
		metrics.RequestTotal.WithLabelValues(r.Method, status).Inc()
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
