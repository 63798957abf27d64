package middleware

import (
	"net/http"
	"runtime/debug"
)

// Recover turns a handler panic into a 500 response so one bad request
// cannot take the server down. Runs outermost in the chain, before the
// request id is on the context, so the id is read back from the
// response header where RequestID echoed it.
func (m *Middleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			m.log.Error().
				Interface("panic", rec).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", w.Header().Get("X-Request-ID")).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"code":"internal_error","message":"An unexpected error occurred"}}`))
		}()

		next.ServeHTTP(w, r)
	})
}
