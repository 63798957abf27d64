package gatepass

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type contextKey string

// sessionContextKey is the key used to store the active Session in the
// request context.
const sessionContextKey contextKey = "gatepass_session"

// MiddlewareConfig configures the access guard middleware.
type MiddlewareConfig struct {
	// Subject extracts the acting subject from a request. Required.
	// Typically this reads an authenticated user id from the request
	// context or a trusted header.
	Subject func(r *http.Request) string

	// Resource derives the resource URL the request is trying to reach.
	// If nil, the URL is reconstructed from the request host and path.
	Resource func(r *http.Request) string

	// Skipper defines a function to skip this middleware for certain
	// requests. Return true to skip the access check.
	Skipper func(r *http.Request) bool

	// SkipPaths is a list of path prefixes that do not require an access
	// session. Example: []string{"/health", "/public/"}
	SkipPaths []string

	// OnDenied is an optional custom handler for requests without an
	// active session. If nil, a JSON 403 response is written.
	OnDenied http.HandlerFunc

	// OnError is an optional custom handler for failed access checks.
	// If nil, a JSON 503 response is written. The guard fails closed:
	// a check error never lets the request through.
	OnError func(w http.ResponseWriter, r *http.Request, err error)

	// ReportBlocked records a blocked-action audit event whenever a
	// request is denied. Reporting is best effort and asynchronous.
	ReportBlocked bool
}

// RequireAccess returns net/http middleware that only passes requests
// from subjects holding an active access session for the resource.
//
// The active session is stored in the request context; retrieve it in
// handlers with SessionFromContext.
func (c *Client) RequireAccess(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	resource := cfg.Resource
	if resource == nil {
		resource = defaultResource
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skipper != nil && cfg.Skipper(r) {
				next.ServeHTTP(w, r)
				return
			}
			for _, p := range cfg.SkipPaths {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}

			subject := ""
			if cfg.Subject != nil {
				subject = cfg.Subject(r)
			}
			resourceURL := resource(r)

			decision, err := c.CheckAccess(r.Context(), subject, resourceURL)
			if err != nil {
				if cfg.OnError != nil {
					cfg.OnError(w, r, err)
					return
				}
				writeGuardError(w, http.StatusServiceUnavailable, "check_unavailable", "access check failed")
				return
			}

			if !decision.Active {
				if cfg.ReportBlocked {
					go c.reportBlocked(subject, resourceURL)
				}
				if cfg.OnDenied != nil {
					cfg.OnDenied(w, r)
					return
				}
				writeGuardError(w, http.StatusForbidden, "access_denied", "no active access session for this resource")
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, decision.Session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext retrieves the active Session stored by the
// RequireAccess middleware.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	return session, ok && session != nil
}

func (c *Client) reportBlocked(subjectID, resourceURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Best effort: a failed report must not affect the denied response.
	_ = c.RecordEvent(ctx, EventParams{
		Type:        "blocked-action",
		SubjectID:   subjectID,
		ResourceURL: resourceURL,
	})
}

func defaultResource(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}

func writeGuardError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
