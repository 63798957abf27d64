package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gatepass/gatepass/internal/config"
	_ "github.com/lib/pq"
)

// Postgres is the lib/pq backed store: one (key, value) table per
// collection, created by the migrations under migrations/.
type Postgres struct {
	db  *sql.DB
	hub *notifier
}

// NewPostgres creates a new PostgreSQL-backed store
func NewPostgres(ctx context.Context, cfg config.PostgresConfig) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections / 2)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	probe, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(probe); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Postgres{db: db, hub: newNotifier()}, nil
}

// DB exposes the underlying connection pool for the migration tool
func (p *Postgres) DB() *sql.DB {
	return p.db
}

// Get returns the value for key, or ErrNotFound
func (p *Postgres) Get(ctx context.Context, collection, key string) (string, error) {
	var value string
	query := "SELECT value FROM " + collection + " WHERE key = $1"
	err := p.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: get %s: %w", ErrUnavailable, collection, err)
	}
	return value, nil
}

// Set upserts the value for key
func (p *Postgres) Set(ctx context.Context, collection, key, value string) error {
	query := "INSERT INTO " + collection + " (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = $3"
	if _, err := p.db.ExecContext(ctx, query, key, value, value); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrUnavailable, collection, err)
	}
	p.hub.publish(Change{Collection: collection, Key: key, Op: OpPut})
	return nil
}

// Delete removes the key; deleting an absent key is a no-op
func (p *Postgres) Delete(ctx context.Context, collection, key string) error {
	query := "DELETE FROM " + collection + " WHERE key = $1"
	res, err := p.db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrUnavailable, collection, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		p.hub.publish(Change{Collection: collection, Key: key, Op: OpDelete})
	}
	return nil
}

// List returns every key/value pair in the collection
func (p *Postgres) List(ctx context.Context, collection string) (map[string]string, error) {
	query := "SELECT key, value FROM " + collection
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrUnavailable, collection, err)
	}
	defer rows.Close()

	records := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("%w: list %s: %w", ErrUnavailable, collection, err)
		}
		records[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrUnavailable, collection, err)
	}
	return records, nil
}

// Subscribe returns in-process change notifications for the named
// collections
func (p *Postgres) Subscribe(collections ...string) (<-chan Change, func()) {
	return p.hub.subscribe(collections...)
}

// HealthCheck verifies the database connection is healthy
func (p *Postgres) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the connection pool
func (p *Postgres) Close() error {
	return p.db.Close()
}
