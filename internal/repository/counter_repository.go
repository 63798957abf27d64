package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gatepass/gatepass/internal/store"
)

// CounterNameRemovedDevices is the scalar maintained by the device
// registry for the notification surface.
const CounterNameRemovedDevices = "removed-devices"

// CounterRepository handles small named scalars. Only the device
// registry writes this collection.
type CounterRepository struct {
	store store.Store
}

// NewCounterRepository creates a new CounterRepository
func NewCounterRepository(s store.Store) *CounterRepository {
	return &CounterRepository{store: s}
}

// Get returns the counter value, zero when the counter does not exist
func (r *CounterRepository) Get(ctx context.Context, name string) (int, error) {
	data, err := r.store.Get(ctx, store.CollectionCounters, name)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get counter %s: %w", name, err)
	}
	value, err := strconv.Atoi(data)
	if err != nil {
		return 0, fmt.Errorf("failed to decode counter %s: %w", name, err)
	}
	return value, nil
}

// Set stores the counter value
func (r *CounterRepository) Set(ctx context.Context, name string, value int) error {
	if err := r.store.Set(ctx, store.CollectionCounters, name, strconv.Itoa(value)); err != nil {
		return fmt.Errorf("failed to set counter %s: %w", name, err)
	}
	return nil
}

// Add adjusts the counter by delta, flooring at zero, and returns the
// new value
func (r *CounterRepository) Add(ctx context.Context, name string, delta int) (int, error) {
	value, err := r.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	value += delta
	if value < 0 {
		value = 0
	}
	if err := r.Set(ctx, name, value); err != nil {
		return 0, err
	}
	return value, nil
}
