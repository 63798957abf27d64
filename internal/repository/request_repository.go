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

// RequestRepository handles access request persistence. Only the request
// ledger writes this collection.
type RequestRepository struct {
	store store.Store
}

// NewRequestRepository creates a new RequestRepository
func NewRequestRepository(s store.Store) *RequestRepository {
	return &RequestRepository{store: s}
}

// Create inserts a new access request
func (r *RequestRepository) Create(ctx context.Context, req *model.AccessRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	if err := r.store.Set(ctx, store.CollectionRequests, req.ID, string(data)); err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

// GetByID returns the request with the given id
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*model.AccessRequest, error) {
	data, err := r.store.Get(ctx, store.CollectionRequests, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	var req model.AccessRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return nil, fmt.Errorf("failed to decode request %s: %w", id, err)
	}
	return &req, nil
}

// Update overwrites an existing request
func (r *RequestRepository) Update(ctx context.Context, req *model.AccessRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	if err := r.store.Set(ctx, store.CollectionRequests, req.ID, string(data)); err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	return nil
}

// List returns all requests, newest first
func (r *RequestRepository) List(ctx context.Context) ([]*model.AccessRequest, error) {
	records, err := r.store.List(ctx, store.CollectionRequests)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	requests := make([]*model.AccessRequest, 0, len(records))
	for id, data := range records {
		var req model.AccessRequest
		if err := json.Unmarshal([]byte(data), &req); err != nil {
			return nil, fmt.Errorf("failed to decode request %s: %w", id, err)
		}
		requests = append(requests, &req)
	}
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].ID > requests[j].ID
		}
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return requests, nil
}
