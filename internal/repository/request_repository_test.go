package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/gatepass/internal/model"
	"github.com/gatepass/gatepass/internal/store"
)

func TestRequestRepository_RoundTrip(t *testing.T) {
	repo := NewRequestRepository(store.NewMemory())
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "req_missing")
	require.ErrorIs(t, err, ErrNotFound)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	req := &model.AccessRequest{
		ID:              "req_1",
		SubjectID:       "alice@example.com",
		ResourceURL:     "https://vault.internal/records/7",
		DurationMinutes: 30,
		DurationKind:    model.DurationPreset,
		Status:          model.RequestPending,
		CreatedAt:       created,
		Version:         1,
	}
	require.NoError(t, repo.Create(ctx, req))

	got, err := repo.GetByID(ctx, "req_1")
	require.NoError(t, err)
	assert.Equal(t, req.SubjectID, got.SubjectID)
	assert.Equal(t, model.RequestPending, got.Status)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.Nil(t, got.ApprovedAt)
}

func TestRequestRepository_ListNewestFirst(t *testing.T) {
	repo := NewRequestRepository(store.NewMemory())
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"req_a", "req_b", "req_c"} {
		require.NoError(t, repo.Create(ctx, &model.AccessRequest{
			ID:        id,
			Status:    model.RequestPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Version:   1,
		}))
	}

	requests, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, requests, 3)
	assert.Equal(t, "req_c", requests[0].ID)
	assert.Equal(t, "req_b", requests[1].ID)
	assert.Equal(t, "req_a", requests[2].ID)
}
