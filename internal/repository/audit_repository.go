package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gatepass/gatepass/internal/model"
	"github.com/gatepass/gatepass/internal/store"
)

// AuditRepository handles audit log persistence. Entry ids are
// zero-padded timestamps, so lexicographic key order is chronological
// and pruning the oldest entries means deleting the smallest keys.
type AuditRepository struct {
	store store.Store
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(s store.Store) *AuditRepository {
	return &AuditRepository{store: s}
}

// Append persists a batch of entries
func (r *AuditRepository) Append(ctx context.Context, entries []*model.AuditLogEntry) error {
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode audit entry: %w", err)
		}
		if err := r.store.Set(ctx, store.CollectionAuditLog, entry.ID, string(data)); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
	}
	return nil
}

// List returns all entries, newest first
func (r *AuditRepository) List(ctx context.Context) ([]*model.AuditLogEntry, error) {
	records, err := r.store.List(ctx, store.CollectionAuditLog)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	entries := make([]*model.AuditLogEntry, 0, len(records))
	for id, data := range records {
		var entry model.AuditLogEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode audit entry %s: %w", id, err)
		}
		entries = append(entries, &entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

// Prune deletes the oldest entries beyond the retention cap and returns
// how many were removed
func (r *AuditRepository) Prune(ctx context.Context, cap int) (int, error) {
	records, err := r.store.List(ctx, store.CollectionAuditLog)
	if err != nil {
		return 0, fmt.Errorf("failed to list audit log: %w", err)
	}
	if len(records) <= cap {
		return 0, nil
	}

	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pruned := 0
	for _, k := range keys[:len(records)-cap] {
		if err := r.store.Delete(ctx, store.CollectionAuditLog, k); err != nil {
			return pruned, fmt.Errorf("failed to prune audit entry %s: %w", k, err)
		}
		pruned++
	}
	return pruned, nil
}
