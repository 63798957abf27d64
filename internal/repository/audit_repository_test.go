package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/gatepass/internal/model"
	"github.com/gatepass/gatepass/internal/store"
)

func auditEntry(seq int, at time.Time) *model.AuditLogEntry {
	return &model.AuditLogEntry{
		// Mirrors the id scheme used by the audit logger: zero-padded
		// nanoseconds keep key order chronological.
		ID:        fmt.Sprintf("%020d-%04d", at.UnixNano(), seq),
		Timestamp: at,
		Event:     model.Event{Kind: model.EventRequest, SubjectID: "alice@example.com"},
	}
}

func TestAuditRepository_AppendAndListNewestFirst(t *testing.T) {
	repo := NewAuditRepository(store.NewMemory())
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	batch := []*model.AuditLogEntry{
		auditEntry(1, base),
		auditEntry(2, base.Add(time.Second)),
		auditEntry(3, base.Add(2*time.Second)),
	}
	require.NoError(t, repo.Append(ctx, batch))

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Timestamp.After(entries[1].Timestamp))
	assert.True(t, entries[1].Timestamp.After(entries[2].Timestamp))
}

func TestAuditRepository_PruneDropsOldestFirst(t *testing.T) {
	repo := NewAuditRepository(store.NewMemory())
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var batch []*model.AuditLogEntry
	for i := 0; i < 10; i++ {
		batch = append(batch, auditEntry(i, base.Add(time.Duration(i)*time.Second)))
	}
	require.NoError(t, repo.Append(ctx, batch))

	pruned, err := repo.Prune(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, pruned)

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	// The four most recent survive
	assert.True(t, entries[len(entries)-1].Timestamp.Equal(base.Add(6*time.Second)))
}

func TestAuditRepository_PruneUnderCapIsNoop(t *testing.T) {
	repo := NewAuditRepository(store.NewMemory())
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, []*model.AuditLogEntry{
		auditEntry(0, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}))

	pruned, err := repo.Prune(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, pruned)
}
