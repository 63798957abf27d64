package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gatepass/gatepass/internal/config"
	"github.com/redis/go-redis/v9"
)

// Redis is the go-redis backed store: one hash per collection.
type Redis struct {
	client *redis.Client
	hub    *notifier
}

// NewRedis creates a new Redis-backed store
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     32,
		MinIdleConns: 4,
	})

	probe, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(probe).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr(), err)
	}

	return &Redis{client: client, hub: newNotifier()}, nil
}

// Get returns the value for key, or ErrNotFound
func (r *Redis) Get(ctx context.Context, collection, key string) (string, error) {
	value, err := r.client.HGet(ctx, collection, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: get %s: %w", ErrUnavailable, collection, err)
	}
	return value, nil
}

// Set upserts the value for key
func (r *Redis) Set(ctx context.Context, collection, key, value string) error {
	if err := r.client.HSet(ctx, collection, key, value).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrUnavailable, collection, err)
	}
	r.hub.publish(Change{Collection: collection, Key: key, Op: OpPut})
	return nil
}

// Delete removes the key; deleting an absent key is a no-op
func (r *Redis) Delete(ctx context.Context, collection, key string) error {
	removed, err := r.client.HDel(ctx, collection, key).Result()
	if err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrUnavailable, collection, err)
	}
	if removed > 0 {
		r.hub.publish(Change{Collection: collection, Key: key, Op: OpDelete})
	}
	return nil
}

// List returns every key/value pair in the collection
func (r *Redis) List(ctx context.Context, collection string) (map[string]string, error) {
	records, err := r.client.HGetAll(ctx, collection).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrUnavailable, collection, err)
	}
	return records, nil
}

// Subscribe returns in-process change notifications for the named
// collections
func (r *Redis) Subscribe(collections ...string) (<-chan Change, func()) {
	return r.hub.subscribe(collections...)
}

// HealthCheck verifies the Redis connection is healthy
func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (r *Redis) Close() error {
	return r.client.Close()
}

// Incr increments a counter key, used by the rate limiter
func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

// Expire sets a TTL on an existing key
func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

// TTL returns the remaining lifetime of a key
func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, key).Result()
}
