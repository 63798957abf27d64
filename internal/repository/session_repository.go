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

// SessionRepository handles session persistence. Sessions are keyed by
// the request that granted them; only the session manager writes this
// collection.
type SessionRepository struct {
	store store.Store
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(s store.Store) *SessionRepository {
	return &SessionRepository{store: s}
}

// Create inserts a new session. At most one session exists per request.
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	_, err := r.store.Get(ctx, store.CollectionSessions, session.RequestID)
	if err == nil {
		return ErrDuplicate
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check session: %w", err)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.store.Set(ctx, store.CollectionSessions, session.RequestID, string(data)); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByRequestID returns the session created for the given request
func (r *SessionRepository) GetByRequestID(ctx context.Context, requestID string) (*model.Session, error) {
	data, err := r.store.Get(ctx, store.CollectionSessions, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var session model.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", requestID, err)
	}
	return &session, nil
}

// Delete removes the session for the given request; absent is a no-op
func (r *SessionRepository) Delete(ctx context.Context, requestID string) error {
	if err := r.store.Delete(ctx, store.CollectionSessions, requestID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns all sessions, newest expiry first
func (r *SessionRepository) List(ctx context.Context) ([]*model.Session, error) {
	records, err := r.store.List(ctx, store.CollectionSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	sessions := make([]*model.Session, 0, len(records))
	for id, data := range records {
		var session model.Session
		if err := json.Unmarshal([]byte(data), &session); err != nil {
			return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
		}
		sessions = append(sessions, &session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].ExpiresAt.Equal(sessions[j].ExpiresAt) {
			return sessions[i].RequestID > sessions[j].RequestID
		}
		return sessions[i].ExpiresAt.After(sessions[j].ExpiresAt)
	})
	return sessions, nil
}
