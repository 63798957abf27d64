package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// contextKey is a private type so middleware context values cannot
// collide with values set by other packages.
type contextKey int

const (
	requestIDKey contextKey = iota
	startTimeKey
	approverKey
)

// RequestID tags every request with a unique id so log lines from one
// request can be correlated. An id handed in by a proxy or the SDK via
// X-Request-ID is kept; otherwise a new one is generated. The id is
// echoed back on the response.
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the id set by RequestID, or "" when the
// middleware did not run.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Timing records when the request entered the chain. The access logger
// reads it back so the reported duration covers every middleware below
// this one, not just the handler.
func (m *Middleware) Timing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), startTimeKey, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func startFromContext(ctx context.Context) time.Time {
	t, _ := ctx.Value(startTimeKey).(time.Time)
	return t
}
