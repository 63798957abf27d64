package middleware

import (
	"net/http"
	"strings"
	"time"
)

// responseWriter captures the status code and body size for the access
// log. A handler that never calls WriteHeader is reported as 200.
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(p []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(p)
	rw.bytes += int64(n)
	return n, err
}

// Logger emits one access log line per request, after the handler
// returns. The duration is measured from the Timing middleware when it
// ran, so it includes the rest of the chain.
func (m *Middleware) Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackStart := time.Now()
		wrapped := &responseWriter{ResponseWriter: w}

		next.ServeHTTP(wrapped, r)

		start := startFromContext(r.Context())
		if start.IsZero() {
			start = fallbackStart
		}
		status := wrapped.status
		if status == 0 {
			status = http.StatusOK
		}

		m.log.HTTPRequest(
			r.Method,
			r.URL.Path,
			RequestIDFromContext(r.Context()),
			clientIP(r),
			status,
			wrapped.bytes,
			time.Since(start),
		)
	})
}

// clientIP prefers the first hop in X-Forwarded-For, which is the
// original client when the proxy chain is trusted.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	return r.RemoteAddr
}
