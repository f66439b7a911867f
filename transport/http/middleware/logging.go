package middleware

import (
	"net/http"
	"time"

	"github.com/kart-io/summaryhub/pkg/logger"
)

// Logging logs one line per request with method, path, status, and
// latency. It should run inside Correlation so the id is available.
func Logging(log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Discard
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapper, r)

			log.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapper.statusCode,
				"durationMs", time.Since(start).Milliseconds(),
				"correlationId", GetCorrelationID(r.Context()),
				"remoteAddr", r.RemoteAddr,
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}
