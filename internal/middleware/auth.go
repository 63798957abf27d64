package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gatepass/gatepass/internal/auth"
)

const adminTokenCookie = "gatepass_admin_token"

// AdminAuth validates the admin bearer token and stores the approver
// identity on the request context
func (m *Middleware) AdminAuth(tokenSvc *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := adminToken(r)
			if raw == "" {
				unauthorized(w, "unauthorized", "Authentication required")
				return
			}

			claims, err := tokenSvc.ValidateToken(raw)
			if err != nil {
				m.log.Debug().Err(err).Msg("admin token validation failed")
				unauthorized(w, "token_expired", "The token is invalid or expired")
				return
			}

			ctx := context.WithValue(r.Context(), approverKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// adminToken pulls the bearer token from the Authorization header,
// falling back to the cookie set by the admin UI.
func adminToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(adminTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// ApproverFromContext returns the identity stored by AdminAuth, or ""
// on unauthenticated requests.
func ApproverFromContext(ctx context.Context) string {
	id, _ := ctx.Value(approverKey).(string)
	return id
}

func unauthorized(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
