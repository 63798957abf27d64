package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gatepass/gatepass/internal/auth"
	"github.com/gatepass/gatepass/internal/handler"
	"github.com/gatepass/gatepass/internal/logger"
	"github.com/gatepass/gatepass/internal/middleware"
	"github.com/gatepass/gatepass/internal/version"
)

// New creates and configures the HTTP router
func New(h *handler.Handler, mw *middleware.Middleware, log *logger.Logger, tokenSvc *auth.TokenService, corsOrigins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	banner := fmt.Sprintf(`{"message":"Gatepass API v1","version":%q}`, version.Version)
	mux.HandleFunc("GET /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(banner))
	})

	perMinute := func(limit int) func(http.Handler) http.Handler {
		return mw.RateLimit(middleware.RateLimitConfig{
			Limit:  limit,
			Window: time.Minute,
			KeyFn:  middleware.IPKey,
		})
	}

	// Public routes used by monitored clients. Heartbeats arrive from
	// every device on an interval so they get the widest allowance.
	mux.Handle("POST /api/v1/requests", perMinute(30)(http.HandlerFunc(h.SubmitRequest)))
	mux.Handle("GET /api/v1/sessions/check", http.HandlerFunc(h.CheckSession))
	mux.Handle("POST /api/v1/devices/heartbeat", perMinute(120)(http.HandlerFunc(h.Heartbeat)))
	mux.Handle("POST /api/v1/events", perMinute(60)(http.HandlerFunc(h.RecordEvent)))
	mux.Handle("GET /api/v1/notifications/badge", http.HandlerFunc(h.Badge))

	// Login is public but brute-forceable, so its window is its own
	loginLimiter := mw.RateLimit(middleware.RateLimitConfig{
		Limit:  10,
		Window: 10 * time.Minute,
		KeyFn:  middleware.IPKey,
	})
	mux.Handle("POST /api/v1/admin/login", loginLimiter(http.HandlerFunc(h.AdminLogin)))

	adminAuth := mw.AdminAuth(tokenSvc)
	mux.Handle("GET /api/v1/requests", adminAuth(http.HandlerFunc(h.ListRequests)))
	mux.Handle("POST /api/v1/requests/{id}/approve", adminAuth(http.HandlerFunc(h.ApproveRequest)))
	mux.Handle("POST /api/v1/requests/{id}/deny", adminAuth(http.HandlerFunc(h.DenyRequest)))
	mux.Handle("GET /api/v1/sessions", adminAuth(http.HandlerFunc(h.ListSessions)))
	mux.Handle("GET /api/v1/devices", adminAuth(http.HandlerFunc(h.ListDevices)))
	mux.Handle("GET /api/v1/events", adminAuth(http.HandlerFunc(h.ListEvents)))
	mux.Handle("POST /api/v1/admin/totp/setup", adminAuth(http.HandlerFunc(h.AdminTOTPSetup)))

	// Recover sits outermost so a panic anywhere below still becomes a
	// 500. RequestID and Timing run before Logger so the access log can
	// read both back off the context.
	return chain(mux,
		mw.Recover,
		mw.RequestID,
		mw.Timing,
		mw.Logger,
		mw.SecurityHeaders,
		mw.CORS(corsOrigins),
	)
}

// chain wraps h so the first listed middleware is the outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
