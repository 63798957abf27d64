package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/gatepass/internal/auth"
	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/handler"
	"github.com/gatepass/gatepass/internal/logger"
	"github.com/gatepass/gatepass/internal/middleware"
	"github.com/gatepass/gatepass/internal/repository"
	"github.com/gatepass/gatepass/internal/router"
	"github.com/gatepass/gatepass/internal/service"
	"github.com/gatepass/gatepass/internal/store"
)

const adminPassword = "tr1ple-latch-Gatehouse"

// env wires the full request path, router and middleware included, over
// a memory store so tests exercise the same stack the server boots.
type env struct {
	srv   http.Handler
	audit *service.AuditService
}

func newEnv(t *testing.T, mutate func(cfg *config.Config)) *env {
	t.Helper()

	hash, err := auth.HashPassword(adminPassword)
	require.NoError(t, err)

	cfg := &config.Config{
		Access: config.AccessConfig{
			MaxCustomDurationMinutes: 1440,
			SessionCacheTTL:          5 * time.Second,
			SessionSweepInterval:     time.Minute,
		},
		Devices: config.DevicesConfig{
			HeartbeatInterval: 5 * time.Minute,
			RemovalThreshold:  time.Hour,
			SweepInterval:     5 * time.Minute,
			SelfReactivate:    true,
		},
		Audit: config.AuditConfig{
			BatchSize:     50,
			FlushInterval: time.Minute,
			RetentionCap:  1000,
		},
		Admin: config.AdminConfig{
			Username:     "admin",
			PasswordHash: hash,
			TokenSecret:  strings.Repeat("s", 32),
			TokenTTL:     time.Hour,
			TokenIssuer:  "gatepass-test",
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	st := store.NewMemory()
	log := logger.New("error", "json")

	requestRepo := repository.NewRequestRepository(st)
	sessionRepo := repository.NewSessionRepository(st)
	deviceRepo := repository.NewDeviceRepository(st)
	auditRepo := repository.NewAuditRepository(st)
	counterRepo := repository.NewCounterRepository(st)

	auditSvc := service.NewAuditService(auditRepo, cfg, log)
	sessionSvc := service.NewSessionService(sessionRepo, auditSvc, cfg, log)
	requestSvc := service.NewRequestService(requestRepo, sessionSvc, auditSvc, nil, cfg, log)
	deviceSvc := service.NewDeviceService(deviceRepo, counterRepo, auditSvc, cfg, log)
	notificationSvc := service.NewNotificationService(requestRepo, counterRepo, st, cfg, log)
	t.Cleanup(notificationSvc.Close)

	tokenSvc, err := auth.NewTokenService(cfg.Admin)
	require.NoError(t, err)
	adminSvc := service.NewAdminService(tokenSvc, cfg, log)

	h := handler.New(st, log, cfg, requestSvc, sessionSvc, deviceSvc, auditSvc, notificationSvc, adminSvc)
	mw := middleware.New(nil, log, cfg)

	return &env{
		srv:   router.New(h, mw, log, tokenSvc, cfg.Server.CORSOrigins),
		audit: auditSvc,
	}
}

func (e *env) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *env) login(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{
		"username": "admin",
		"password": adminPassword,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody(t, rec)["token"].(string)
}

func (e *env) submit(t *testing.T, subjectID string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/requests", map[string]any{
		"subjectId":                subjectID,
		"resourceUrl":              "https://data.example.com/reports",
		"requestedDurationMinutes": 30,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody(t, rec)["id"].(string)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	wrapper, ok := decodeBody(t, rec)["error"].(map[string]any)
	require.True(t, ok, "response carries no error object: %s", rec.Body.String())
	return wrapper["code"].(string)
}

func TestSubmitRequest(t *testing.T) {
	e := newEnv(t, nil)

	t.Run("creates a pending request", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/v1/requests", map[string]any{
			"subjectId":                "alice@example.com",
			"resourceUrl":              "https://data.example.com/reports",
			"requestedDurationMinutes": 30,
		}, "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		body := decodeBody(t, rec)
		assert.Equal(t, "pending", body["status"])
		assert.True(t, strings.HasPrefix(body["id"].(string), "req_"))
		assert.Equal(t, "alice@example.com", body["subjectId"])
	})

	t.Run("rejects a payload missing the subject", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/v1/requests", map[string]any{
			"resourceUrl":              "https://data.example.com/reports",
			"requestedDurationMinutes": 30,
		}, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", errorCode(t, rec))
	})

	t.Run("rejects a malformed resource URL", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/v1/requests", map[string]any{
			"subjectId":                "alice@example.com",
			"resourceUrl":              "not a url",
			"requestedDurationMinutes": 30,
		}, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", errorCode(t, rec))
	})
}

func TestCheckSession(t *testing.T) {
	e := newEnv(t, nil)

	t.Run("no session means inactive, not an error", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/api/v1/sessions/check?subjectId=ghost@example.com&resourceUrl=https%3A%2F%2Fdata.example.com", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, false, body["active"])
		assert.NotContains(t, body, "session")
	})

	t.Run("requires both query parameters", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/api/v1/sessions/check?subjectId=ghost@example.com", nil, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", errorCode(t, rec))
	})
}

func TestApproveRequestFlow(t *testing.T) {
	e := newEnv(t, nil)
	token := e.login(t)
	id := e.submit(t, "alice@example.com")

	rec := e.do(t, http.MethodPost, "/api/v1/requests/"+id+"/approve", nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "approved", body["status"])
	assert.Equal(t, "admin", body["approvedBy"])
	assert.NotEmpty(t, body["expiresAt"])

	rec = e.do(t, http.MethodGet, "/api/v1/sessions/check?subjectId=alice@example.com&resourceUrl=https%3A%2F%2Fdata.example.com%2Freports", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["active"])
	assert.Contains(t, body, "session")

	rec = e.do(t, http.MethodPost, "/api/v1/requests/"+id+"/approve", nil, token)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_resolved", errorCode(t, rec))

	rec = e.do(t, http.MethodPost, "/api/v1/requests/unknown/approve", nil, token)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

func TestDenyRequestLeavesNoSession(t *testing.T) {
	e := newEnv(t, nil)
	token := e.login(t)
	id := e.submit(t, "bob@example.com")

	rec := e.do(t, http.MethodPost, "/api/v1/requests/"+id+"/deny", nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "denied", decodeBody(t, rec)["status"])

	rec = e.do(t, http.MethodGet, "/api/v1/sessions/check?subjectId=bob@example.com&resourceUrl=https%3A%2F%2Fdata.example.com%2Freports", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["active"])
}

func TestResolveRequiresAdminToken(t *testing.T) {
	e := newEnv(t, nil)
	id := e.submit(t, "alice@example.com")

	rec := e.do(t, http.MethodPost, "/api/v1/requests/"+id+"/approve", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/requests/"+id+"/deny", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHeartbeatAndDeviceList(t *testing.T) {
	e := newEnv(t, nil)
	token := e.login(t)

	rec := e.do(t, http.MethodPost, "/api/v1/devices/heartbeat", map[string]any{
		"deviceId":     "dev-123",
		"subjectId":    "alice@example.com",
		"displayEmail": "alice@example.com",
		"userAgent":    "Mozilla/5.0 (Macintosh) Chrome/125.0 Safari/537.36",
	}, "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/v1/devices", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	devices := decodeBody(t, rec)["devices"].([]any)
	require.Len(t, devices, 1)
	device := devices[0].(map[string]any)
	assert.Equal(t, "alice@example.com", device["subjectId"])
	assert.Equal(t, "Chrome", device["browserDescriptor"])
	assert.Equal(t, "active", device["status"])

	t.Run("rejects an unknown status filter", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/api/v1/devices?status=sleeping", nil, token)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", errorCode(t, rec))
	})

	t.Run("rejects a heartbeat without a device id", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/v1/devices/heartbeat", map[string]any{
			"subjectId": "alice@example.com",
		}, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", errorCode(t, rec))
	})
}

func TestRecordEventAndQuery(t *testing.T) {
	e := newEnv(t, nil)
	token := e.login(t)

	rec := e.do(t, http.MethodPost, "/api/v1/events", map[string]any{
		"type":        "blocked-action",
		"subjectId":   "alice@example.com",
		"resourceUrl": "https://data.example.com/reports",
		"details":     "download blocked",
	}, "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	e.audit.Flush()

	rec = e.do(t, http.MethodGet, "/api/v1/events?type=blocked-action", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeBody(t, rec)["events"].([]any)
	require.Len(t, events, 1)
	assert.Equal(t, "alice@example.com", events[0].(map[string]any)["subjectId"])

	t.Run("rejects an unknown event type", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/v1/events", map[string]any{
			"type": "surprise-party",
		}, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", errorCode(t, rec))
	})

	t.Run("rejects a malformed from timestamp", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/api/v1/events?from=yesterday", nil, token)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", errorCode(t, rec))
	})
}

func TestAdminLogin(t *testing.T) {
	t.Run("issues a bearer token and a cookie", func(t *testing.T) {
		e := newEnv(t, nil)
		rec := e.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{
			"username": "admin",
			"password": adminPassword,
		}, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decodeBody(t, rec)
		assert.NotEmpty(t, body["token"])
		assert.Equal(t, "Bearer", body["tokenType"])
		assert.NotEmpty(t, body["expiresAt"])

		var cookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == "gatepass_admin_token" {
				cookie = c
			}
		}
		require.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		e := newEnv(t, nil)
		rec := e.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{
			"username": "admin",
			"password": "wrong",
		}, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_credentials", errorCode(t, rec))
	})

	t.Run("demands a code once a TOTP secret is configured", func(t *testing.T) {
		e := newEnv(t, func(cfg *config.Config) {
			cfg.Admin.TOTPSecret = "JBSWY3DPEHPK3PXP"
		})
		rec := e.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{
			"username": "admin",
			"password": adminPassword,
		}, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "totp_required", errorCode(t, rec))
	})
}

func TestAdminTOTPSetup(t *testing.T) {
	e := newEnv(t, nil)
	token := e.login(t)

	rec := e.do(t, http.MethodPost, "/api/v1/admin/totp/setup", nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["secret"])
	assert.Contains(t, body["otpauthUrl"], "otpauth://totp/")
	assert.NotEmpty(t, body["qrCode"])
}

func TestBadgeCountsPendingRequests(t *testing.T) {
	e := newEnv(t, nil)
	token := e.login(t)

	rec := e.do(t, http.MethodGet, "/api/v1/notifications/badge", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec)["pendingRequests"])

	e.submit(t, "alice@example.com")

	// The store change notification invalidates the cached badge on its
	// own goroutine, so poll instead of asserting the very next read.
	require.Eventually(t, func() bool {
		rec := e.do(t, http.MethodGet, "/api/v1/notifications/badge", nil, token)
		if rec.Code != http.StatusOK {
			return false
		}
		return decodeBody(t, rec)["pendingRequests"] == float64(1)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListRequestsStatusFilter(t *testing.T) {
	e := newEnv(t, nil)
	token := e.login(t)
	e.submit(t, "alice@example.com")
	id := e.submit(t, "bob@example.com")

	rec := e.do(t, http.MethodPost, "/api/v1/requests/"+id+"/deny", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/requests?status=pending", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["requests"], 1)

	rec = e.do(t, http.MethodGet, "/api/v1/requests?status=denied", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["requests"], 1)

	rec = e.do(t, http.MethodGet, "/api/v1/requests", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["requests"], 2)

	rec = e.do(t, http.MethodGet, "/api/v1/requests?status=lost", nil, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorCode(t, rec))
}

func TestHealthEndpoints(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "healthy", body["services"].(map[string]any)["store"])
	assert.NotEmpty(t, body["version"])

	rec = e.do(t, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Gatepass API v1")
}
