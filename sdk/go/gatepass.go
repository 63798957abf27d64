package gatepass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Config holds the configuration for the Gatepass client.
type Config struct {
	// BaseURL is the root URL of the Gatepass server, with or without
	// the /api/v1 suffix; it is normalized either way.
	BaseURL string

	// CacheTTL controls how long active access decisions are cached in
	// memory to reduce calls to the Gatepass server. Denials are never
	// cached so a fresh approval takes effect on the next check.
	// Set to -1 to disable caching. Default: 30 seconds
	CacheTTL time.Duration

	// HTTPClient overrides the transport. The default client times out
	// after 10 seconds.
	HTTPClient *http.Client
}

func (c *Config) normalize() {
	if c.CacheTTL == 0 {
		c.CacheTTL = 30 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if !strings.HasSuffix(c.BaseURL, "/api/v1") {
		c.BaseURL = c.BaseURL + "/api/v1"
	}
}

// Client is the Gatepass SDK client. It provides methods for calling
// Gatepass APIs and net/http middleware for guarding routes behind an
// approved access session.
type Client struct {
	cfg   Config
	cache *accessCache
}

// NewClient creates a new Gatepass client with the given configuration.
func NewClient(cfg Config) *Client {
	cfg.normalize()
	return &Client{
		cfg:   cfg,
		cache: newAccessCache(),
	}
}

// CheckAccess reports whether the subject currently holds an approved
// session for the resource. Active decisions are cached according to
// CacheTTL to reduce network calls; a subject with no session gets an
// inactive decision, never an error.
func (c *Client) CheckAccess(ctx context.Context, subjectID, resourceURL string) (*AccessDecision, error) {
	if subjectID == "" {
		return nil, ErrNoSubject
	}
	if resourceURL == "" {
		return nil, ErrNoResource
	}

	key := subjectID + "\x00" + resourceURL
	if c.cfg.CacheTTL > 0 {
		if decision, ok := c.cache.get(key); ok {
			return decision, nil
		}
	}

	q := url.Values{}
	q.Set("subjectId", subjectID)
	q.Set("resourceUrl", resourceURL)
	body, err := c.call(ctx, http.MethodGet, "/sessions/check?"+q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}

	var decision AccessDecision
	if err := json.Unmarshal(body, &decision); err != nil {
		return nil, fmt.Errorf("gatepass: failed to parse access decision: %w", err)
	}

	// Only active decisions are cached. Caching a denial would keep a
	// freshly approved subject locked out until the entry expired.
	if c.cfg.CacheTTL > 0 && decision.Active {
		ttl := c.cfg.CacheTTL
		if decision.Session != nil {
			if remaining := time.Until(decision.Session.ExpiresAt); remaining < ttl {
				ttl = remaining
			}
		}
		if ttl > 0 {
			c.cache.set(key, decision, ttl)
		}
	}

	return &decision, nil
}

// InvalidateAccess removes a cached decision for the subject and resource.
// Call this when the caller knows the session state changed, for example
// after the user reports their request was approved.
func (c *Client) InvalidateAccess(subjectID, resourceURL string) {
	c.cache.delete(subjectID + "\x00" + resourceURL)
}

// SubmitRequest files a new access request for approval. The returned
// request starts in pending status.
func (c *Client) SubmitRequest(ctx context.Context, params SubmitRequestParams) (*AccessRequest, error) {
	body, err := c.call(ctx, http.MethodPost, "/requests", params, "")
	if err != nil {
		return nil, err
	}

	var req AccessRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("gatepass: failed to parse request: %w", err)
	}
	return &req, nil
}

// Heartbeat reports device presence. The server accepts heartbeats
// asynchronously, so a nil error means the beat was received, not that
// it has been durably recorded.
func (c *Client) Heartbeat(ctx context.Context, params HeartbeatParams) error {
	_, err := c.call(ctx, http.MethodPost, "/devices/heartbeat", params, "")
	return err
}

// RecordEvent appends an event to the audit log. Persistence is batched
// on the server side and may land after this call returns.
func (c *Client) RecordEvent(ctx context.Context, params EventParams) error {
	_, err := c.call(ctx, http.MethodPost, "/events", params, "")
	return err
}

// NotificationBadge retrieves the current badge counters shown to
// approvers: pending requests and removed devices.
func (c *Client) NotificationBadge(ctx context.Context) (*Badge, error) {
	body, err := c.call(ctx, http.MethodGet, "/notifications/badge", nil, "")
	if err != nil {
		return nil, err
	}

	var badge Badge
	if err := json.Unmarshal(body, &badge); err != nil {
		return nil, fmt.Errorf("gatepass: failed to parse badge: %w", err)
	}
	return &badge, nil
}

// AdminLogin authenticates an approver and returns a bearer token for
// the admin endpoints.
func (c *Client) AdminLogin(ctx context.Context, username, password string) (*AdminToken, error) {
	body, err := c.call(ctx, http.MethodPost, "/admin/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	if err != nil {
		return nil, err
	}

	var tok AdminToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("gatepass: failed to parse login response: %w", err)
	}
	return &tok, nil
}

// ListRequests retrieves access requests, optionally filtered by status
// ("pending", "approved" or "denied"). Requires an admin token.
func (c *Client) ListRequests(ctx context.Context, token, status string) ([]AccessRequest, error) {
	path := "/requests"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	body, err := c.call(ctx, http.MethodGet, path, nil, token)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Requests []AccessRequest `json:"requests"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("gatepass: failed to parse request list: %w", err)
	}
	return resp.Requests, nil
}

// ApproveRequest approves a pending access request. Requires an admin
// token. Approving an already resolved request fails with an APIError
// carrying code "already_resolved".
func (c *Client) ApproveRequest(ctx context.Context, token, requestID string) (*AccessRequest, error) {
	return c.resolveRequest(ctx, token, requestID, "approve")
}

// DenyRequest denies a pending access request. Requires an admin token.
func (c *Client) DenyRequest(ctx context.Context, token, requestID string) (*AccessRequest, error) {
	return c.resolveRequest(ctx, token, requestID, "deny")
}

func (c *Client) resolveRequest(ctx context.Context, token, requestID, verb string) (*AccessRequest, error) {
	body, err := c.call(ctx, http.MethodPost, "/requests/"+url.PathEscape(requestID)+"/"+verb, nil, token)
	if err != nil {
		return nil, err
	}

	var req AccessRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("gatepass: failed to parse request: %w", err)
	}
	return &req, nil
}

// call performs one API round trip and returns the raw response body,
// or an *APIError for any status of 400 or above.
func (c *Client) call(ctx context.Context, method, path string, payload any, token string) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("gatepass: failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("gatepass: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gatepass: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gatepass: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp.StatusCode, raw)
	}
	return raw, nil
}

// accessCache remembers active decisions between checks. Entries are
// stored by value so callers can hold the returned decision after the
// cache evicts or overwrites the slot.
type accessCache struct {
	mu sync.RWMutex
	m  map[string]cachedDecision
}

type cachedDecision struct {
	decision AccessDecision
	deadline time.Time
}

func newAccessCache() *accessCache {
	ac := &accessCache{m: make(map[string]cachedDecision)}
	go ac.evictLoop()
	return ac
}

func (ac *accessCache) get(key string) (*AccessDecision, bool) {
	ac.mu.RLock()
	e, ok := ac.m[key]
	ac.mu.RUnlock()
	if !ok || !time.Now().Before(e.deadline) {
		return nil, false
	}
	d := e.decision
	return &d, true
}

func (ac *accessCache) set(key string, decision AccessDecision, ttl time.Duration) {
	ac.mu.Lock()
	ac.m[key] = cachedDecision{decision: decision, deadline: time.Now().Add(ttl)}
	ac.mu.Unlock()
}

func (ac *accessCache) delete(key string) {
	ac.mu.Lock()
	delete(ac.m, key)
	ac.mu.Unlock()
}

// evictLoop drops expired entries so a client checking many distinct
// subject and resource pairs does not grow without bound.
func (ac *accessCache) evictLoop() {
	for now := range time.Tick(5 * time.Minute) {
		ac.mu.Lock()
		for key, e := range ac.m {
			if now.After(e.deadline) {
				delete(ac.m, key)
			}
		}
		ac.mu.Unlock()
	}
}
