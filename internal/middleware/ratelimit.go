package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// RateLimitConfig bounds request volume for one route group.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	KeyFn  func(*http.Request) string
}

// quota is one key's standing within the current window.
type quota struct {
	remaining  int
	reset      time.Time
	retryAfter time.Duration
	exceeded   bool
}

// take counts one request against the keyed window in Redis and
// reports the remaining quota.
func (m *Middleware) take(r *http.Request, cfg RateLimitConfig) (quota, error) {
	ctx := r.Context()
	key := "ratelimit:" + cfg.KeyFn(r)

	count, err := m.rdb.Incr(ctx, key)
	if err != nil {
		return quota{}, err
	}
	if count == 1 {
		if err := m.rdb.Expire(ctx, key, cfg.Window); err != nil {
			m.log.Error().Err(err).Str("key", key).Msg("failed to set rate limit window")
		}
	}

	ttl, err := m.rdb.TTL(ctx, key)
	if err != nil || ttl < 0 {
		ttl = cfg.Window
	}

	return quota{
		remaining:  max(0, cfg.Limit-int(count)),
		reset:      time.Now().Add(ttl),
		retryAfter: ttl,
		exceeded:   int(count) > cfg.Limit,
	}, nil
}

// RateLimit enforces cfg against Redis-backed counters. Without a
// Redis store, or with limiting disabled, requests pass through
// unchecked. Counter errors also pass the request through so a cache
// outage cannot lock out legitimate clients.
func (m *Middleware) RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.cfg.Admin.RateLimiting.Enabled || m.rdb == nil {
				next.ServeHTTP(w, r)
				return
			}

			q, err := m.take(r, cfg)
			if err != nil {
				m.log.Error().Err(err).Msg("rate limit counter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(q.remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(q.reset.Unix(), 10))

			if q.exceeded {
				h.Set("Retry-After", strconv.FormatInt(int64(q.retryAfter.Seconds()), 10))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":{"code":"rate_limit_exceeded","message":"Too many requests. Please try again later."}}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IPKey keys the limit on the calling client's address.
func IPKey(r *http.Request) string {
	return clientIP(r)
}
