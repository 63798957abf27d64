package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatepass/gatepass/internal/config"
)

// Collection names. Every record in a collection is a JSON document
// keyed by its id.
const (
	CollectionRequests = "requests"
	CollectionSessions = "sessions"
	CollectionDevices  = "devices"
	CollectionAuditLog = "auditlog"
	CollectionCounters = "counters"
)

// Collections lists every collection a backend must provision
var Collections = []string{
	CollectionRequests,
	CollectionSessions,
	CollectionDevices,
	CollectionAuditLog,
	CollectionCounters,
}

var (
	// ErrNotFound is returned when a collection has no record for a key
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable marks backend failures so callers can distinguish
	// an unreachable store from a missing record
	ErrUnavailable = errors.New("store unavailable")
)

// Op is the kind of committed write a Change describes
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Change describes a committed write, delivered to subscribers after the
// write succeeds
type Change struct {
	Collection string
	Key        string
	Op         Op
}

// Store is the durable KV layer shared by all repositories. Backends do
// not synchronize across instances; Subscribe delivers in-process change
// notifications only.
type Store interface {
	// Get returns the value for key, or ErrNotFound
	Get(ctx context.Context, collection, key string) (string, error)
	// Set upserts the value for key
	Set(ctx context.Context, collection, key, value string) error
	// Delete removes the key; deleting an absent key is a no-op
	Delete(ctx context.Context, collection, key string) error
	// List returns every key/value pair in the collection
	List(ctx context.Context, collection string) (map[string]string, error)
	// Subscribe returns a channel of committed changes for the named
	// collections (all collections when none are given) and a cancel
	// func that stops delivery and closes the channel
	Subscribe(collections ...string) (<-chan Change, func())
	// HealthCheck verifies the backend is reachable
	HealthCheck(ctx context.Context) error
	Close() error
}

// New creates the store backend selected by cfg.Backend
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "postgres":
		return NewPostgres(ctx, cfg.Postgres)
	case "redis":
		return NewRedis(ctx, cfg.Redis)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
