package pockettest

import (
	"net/http"
	"time"

	"pocketkit/internal/logger"
)

// responseWriter is a wrapper for http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs every request at debug and counts it per path.
func loggingMiddleware(log *logger.Logger, count func(path string), next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		count(r.URL.Path)
		next.ServeHTTP(rw, r)
		log.Debug("request",
			"method", r.Method,
			"path", r.RequestURI,
			"status", rw.statusCode,
			"duration", time.Since(start),
		)
	})
}
