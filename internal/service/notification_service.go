package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/logger"
	"github.com/gatepass/gatepass/internal/model"
	"github.com/gatepass/gatepass/internal/repository"
	"github.com/gatepass/gatepass/internal/store"
)

// Badge carries the attention counts shown by the notification surface
type Badge struct {
	PendingRequests int `json:"pendingRequests"`
	RemovedDevices  int `json:"removedDevices"`
}

// NotificationService serves the badge counts from a short-lived cache
// that store change notifications invalidate as soon as the underlying
// collections move.
type NotificationService struct {
	requestRepo *repository.RequestRepository
	counterRepo *repository.CounterRepository
	log         *logger.Logger

	mu          sync.Mutex
	cached      Badge
	refreshedAt time.Time
	valid       bool

	ttl  time.Duration
	now  func() time.Time
	stop func()
}

// NewNotificationService creates a NotificationService subscribed to
// the collections that feed the badge
func NewNotificationService(
	requestRepo *repository.RequestRepository,
	counterRepo *repository.CounterRepository,
	st store.Store,
	cfg *config.Config,
	log *logger.Logger,
) *NotificationService {
	n := &NotificationService{
		requestRepo: requestRepo,
		counterRepo: counterRepo,
		log:         log.WithComponent("notification_service"),
		ttl:         cfg.Access.SessionCacheTTL,
		now:         time.Now,
	}

	changes, cancel := st.Subscribe(
		store.CollectionRequests,
		store.CollectionDevices,
		store.CollectionCounters,
	)
	n.stop = cancel
	go n.watch(changes)
	return n
}

func (n *NotificationService) watch(changes <-chan store.Change) {
	for range changes {
		n.mu.Lock()
		n.valid = false
		n.mu.Unlock()
	}
}

// Badge returns the current counts, served from cache within the TTL
// unless a change notification invalidated it
func (n *NotificationService) Badge(ctx context.Context) (Badge, error) {
	n.mu.Lock()
	if n.valid && n.now().Sub(n.refreshedAt) < n.ttl {
		badge := n.cached
		n.mu.Unlock()
		return badge, nil
	}
	n.mu.Unlock()

	requests, err := n.requestRepo.List(ctx)
	if err != nil {
		return Badge{}, fmt.Errorf("failed to count pending requests: %w", err)
	}
	pending := 0
	for _, req := range requests {
		if req.Status == model.RequestPending {
			pending++
		}
	}

	removed, err := n.counterRepo.Get(ctx, repository.CounterNameRemovedDevices)
	if err != nil {
		return Badge{}, fmt.Errorf("failed to read removed-device counter: %w", err)
	}

	badge := Badge{PendingRequests: pending, RemovedDevices: removed}
	n.mu.Lock()
	n.cached = badge
	n.refreshedAt = n.now()
	n.valid = true
	n.mu.Unlock()
	return badge, nil
}

// Close stops the change watcher
func (n *NotificationService) Close() {
	n.stop()
}
