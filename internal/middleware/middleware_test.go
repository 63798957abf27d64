package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/gatepass/internal/auth"
	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/logger"
)

func newTestMiddleware(t *testing.T) *Middleware {
	t.Helper()

	cfg := &config.Config{}
	cfg.Admin.TokenSecret = strings.Repeat("s", 32)
	cfg.Admin.TokenIssuer = "gatepass-test"
	cfg.Admin.TokenTTL = time.Hour

	return New(nil, logger.New("error", "json"), cfg)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	m := newTestMiddleware(t)

	var seen string
	h := m.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_HonorsInboundHeader(t *testing.T) {
	m := newTestMiddleware(t)

	var seen string
	h := m.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	req.Header.Set("X-Request-ID", "req_inbound_77")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req_inbound_77", seen)
	assert.Equal(t, "req_inbound_77", rec.Header().Get("X-Request-ID"))
}

func TestRecover_TurnsPanicIntoServerError(t *testing.T) {
	m := newTestMiddleware(t)

	h := m.Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}

func TestLogger_PreservesResponse(t *testing.T) {
	m := newTestMiddleware(t)

	h := m.Timing(m.Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"req_1"}`))
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/requests", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"req_1"}`, rec.Body.String())
}

func TestAdminAuth(t *testing.T) {
	m := newTestMiddleware(t)

	tokenSvc, err := auth.NewTokenService(m.cfg.Admin)
	require.NoError(t, err)

	var approver string
	h := m.AdminAuth(tokenSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		approver = ApproverFromContext(r.Context())
	}))

	t.Run("rejects missing credentials", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "unauthorized")
	})

	t.Run("rejects garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "token_expired")
	})

	t.Run("accepts bearer token", func(t *testing.T) {
		token, _, err := tokenSvc.GenerateToken("approver_1")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "approver_1", approver)
	})

	t.Run("falls back to the admin cookie", func(t *testing.T) {
		token, _, err := tokenSvc.GenerateToken("approver_2")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
		req.AddCookie(&http.Cookie{Name: "gatepass_admin_token", Value: token})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "approver_2", approver)
	})
}

func TestCORS(t *testing.T) {
	m := newTestMiddleware(t)
	h := m.CORS([]string{"https://admin.example.com/"})(okHandler())

	t.Run("answers preflight for an allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/requests", nil)
		req.Header.Set("Origin", "https://admin.example.com")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("ignores an unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
		req.Header.Set("Origin", "https://evil.example.com")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	m := newTestMiddleware(t)
	h := m.SecurityHeaders(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:4242"
	assert.Equal(t, "10.0.0.9:4242", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}

func TestRateLimit_PassesThroughWithoutRedis(t *testing.T) {
	m := newTestMiddleware(t)
	m.cfg.Admin.RateLimiting.Enabled = true

	h := m.RateLimit(RateLimitConfig{Limit: 1, Window: time.Minute, KeyFn: IPKey})(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/login", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
