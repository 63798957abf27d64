package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/logger"
	"github.com/gatepass/gatepass/internal/model"
	"github.com/gatepass/gatepass/internal/repository"
	"github.com/gatepass/gatepass/internal/store"
)

// fakeClock stands in for time.Now so tests control expiry and
// threshold predicates
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() *config.Config {
	return &config.Config{
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
			FlushInterval: 2 * time.Second,
			RetentionCap:  10000,
		},
	}
}

type fixture struct {
	store    *store.Memory
	clock    *fakeClock
	cfg      *config.Config
	audit    *AuditService
	sessions *SessionService
	requests *RequestService
	devices  *DeviceService

	auditRepo   *repository.AuditRepository
	sessionRepo *repository.SessionRepository
	requestRepo *repository.RequestRepository
	deviceRepo  *repository.DeviceRepository
	counterRepo *repository.CounterRepository
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}

	st := store.NewMemory()
	clock := newFakeClock()
	log := logger.New("error", "json")

	f := &fixture{
		store:       st,
		clock:       clock,
		cfg:         cfg,
		auditRepo:   repository.NewAuditRepository(st),
		sessionRepo: repository.NewSessionRepository(st),
		requestRepo: repository.NewRequestRepository(st),
		deviceRepo:  repository.NewDeviceRepository(st),
		counterRepo: repository.NewCounterRepository(st),
	}

	f.audit = NewAuditService(f.auditRepo, cfg, log)
	f.audit.now = clock.Now
	f.sessions = NewSessionService(f.sessionRepo, f.audit, cfg, log)
	f.sessions.now = clock.Now
	f.requests = NewRequestService(f.requestRepo, f.sessions, f.audit, nil, cfg, log)
	f.requests.now = clock.Now
	f.devices = NewDeviceService(f.deviceRepo, f.counterRepo, f.audit, cfg, log)
	f.devices.now = clock.Now
	return f
}

// queryKind flushes the audit queue and returns the persisted entries
// of one kind, newest first
func (f *fixture) queryKind(t *testing.T, kind model.EventKind) []*model.AuditLogEntry {
	t.Helper()
	f.audit.Flush()
	entries, err := f.audit.Query(context.Background(), AuditQuery{Kind: kind})
	if err != nil {
		t.Fatalf("query audit log: %v", err)
	}
	return entries
}

// failingStore wraps a Store and fails selected operations, standing in
// for an unavailable backend
type failingStore struct {
	store.Store
	failGet  bool
	failSet  bool
	failList bool
}

func (f *failingStore) Get(ctx context.Context, collection, key string) (string, error) {
	if f.failGet {
		return "", store.ErrUnavailable
	}
	return f.Store.Get(ctx, collection, key)
}

func (f *failingStore) Set(ctx context.Context, collection, key, value string) error {
	if f.failSet {
		return store.ErrUnavailable
	}
	return f.Store.Set(ctx, collection, key, value)
}

func (f *failingStore) List(ctx context.Context, collection string) (map[string]string, error) {
	if f.failList {
		return nil, store.ErrUnavailable
	}
	return f.Store.List(ctx, collection)
}
