package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/gatepass/gatepass/internal/model"
	"github.com/gatepass/gatepass/internal/store"
)

// DeviceRepository handles device roster persistence. Only the device
// registry writes this collection; devices are never deleted.
type DeviceRepository struct {
	store store.Store
}

// NewDeviceRepository creates a new DeviceRepository
func NewDeviceRepository(s store.Store) *DeviceRepository {
	return &DeviceRepository{store: s}
}

// GetByID returns the device with the given id
func (r *DeviceRepository) GetByID(ctx context.Context, id string) (*model.Device, error) {
	data, err := r.store.Get(ctx, store.CollectionDevices, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	var device model.Device
	if err := json.Unmarshal([]byte(data), &device); err != nil {
		return nil, fmt.Errorf("failed to decode device %s: %w", id, err)
	}
	return &device, nil
}

// Upsert creates or overwrites a device record
func (r *DeviceRepository) Upsert(ctx context.Context, device *model.Device) error {
	data, err := json.Marshal(device)
	if err != nil {
		return fmt.Errorf("failed to encode device: %w", err)
	}
	if err := r.store.Set(ctx, store.CollectionDevices, device.ID, string(data)); err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

// List returns all devices, most recently seen first
func (r *DeviceRepository) List(ctx context.Context) ([]*model.Device, error) {
	records, err := r.store.List(ctx, store.CollectionDevices)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	devices := make([]*model.Device, 0, len(records))
	for id, data := range records {
		var device model.Device
		if err := json.Unmarshal([]byte(data), &device); err != nil {
			return nil, fmt.Errorf("failed to decode device %s: %w", id, err)
		}
		devices = append(devices, &device)
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].LastSeen.Equal(devices[j].LastSeen) {
			return devices[i].ID > devices[j].ID
		}
		return devices[i].LastSeen.After(devices[j].LastSeen)
	})
	return devices, nil
}
