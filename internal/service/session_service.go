package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/logger"
	"github.com/gatepass/gatepass/internal/model"
	"github.com/gatepass/gatepass/internal/repository"
)

// Session service errors
var ErrSessionExists = errors.New("session already exists for request")

// SessionService owns the sessions collection and the session-check
// cache. Sessions appear when a request is approved and disappear when
// the expiry sweep prunes them; nothing else mutates the collection.
type SessionService struct {
	sessionRepo *repository.SessionRepository
	audit       *AuditService
	cfg         *config.Config
	log         *logger.Logger

	cache sessionCache
	now   func() time.Time
}

// sessionCache is the active-session fast path: a wholesale snapshot of
// active sessions keyed by subject and resource, served for at most the
// configured TTL and replaced in full on refresh.
type sessionCache struct {
	mu          sync.Mutex
	entries     map[string]model.Session
	refreshedAt time.Time
	valid       bool
}

func cacheKey(subjectID, resourceURL string) string {
	return subjectID + "\x00" + resourceURL
}

// NewSessionService creates a new SessionService
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	audit *AuditService,
	cfg *config.Config,
	log *logger.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		audit:       audit,
		cfg:         cfg,
		log:         log.WithComponent("session_service"),
		now:         time.Now,
	}
}

// CreateSession appends the session granted by an approved request and
// invalidates the check cache before returning
func (s *SessionService) CreateSession(ctx context.Context, session *model.Session) error {
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrSessionExists
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	s.InvalidateCache()

	s.log.Info().
		Str("request_id", session.RequestID).
		Str("subject_id", session.SubjectID).
		Time("expires_at", session.ExpiresAt).
		Msg("session created")
	return nil
}

// Remove deletes the session for a request and invalidates the check
// cache. Used when an approval has to be unwound before it completes.
func (s *SessionService) Remove(ctx context.Context, requestID string) error {
	if err := s.sessionRepo.Delete(ctx, requestID); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	s.InvalidateCache()
	return nil
}

// HasActiveSession answers whether subject currently holds access to
// resource. Within the cache TTL the answer comes from the in-memory
// snapshot; otherwise every session is reloaded and the snapshot
// replaced wholesale. A store failure answers "no access" rather than
// failing the check.
func (s *SessionService) HasActiveSession(ctx context.Context, subjectID, resourceURL string) (bool, *model.Session, error) {
	if subjectID == "" || resourceURL == "" {
		return false, nil, fmt.Errorf("%w: subjectId and resourceUrl are required", ErrInvalidInput)
	}
	now := s.now()

	s.cache.mu.Lock()
	if s.cache.valid && now.Sub(s.cache.refreshedAt) < s.cfg.Access.SessionCacheTTL {
		session, ok := s.cache.entries[cacheKey(subjectID, resourceURL)]
		s.cache.mu.Unlock()
		if ok && session.IsActive(now) {
			return true, &session, nil
		}
		return false, nil, nil
	}
	s.cache.mu.Unlock()

	sessions, err := s.sessionRepo.List(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("session cache refresh failed, answering no access")
		return false, nil, nil
	}

	entries := make(map[string]model.Session, len(sessions))
	for _, session := range sessions {
		if session.IsActive(now) {
			entries[cacheKey(session.SubjectID, session.ResourceURL)] = *session
		}
	}

	s.cache.mu.Lock()
	s.cache.entries = entries
	s.cache.refreshedAt = now
	s.cache.valid = true
	session, ok := s.cache.entries[cacheKey(subjectID, resourceURL)]
	s.cache.mu.Unlock()

	if ok {
		return true, &session, nil
	}
	return false, nil, nil
}

// InvalidateCache forces the next check onto the slow path
func (s *SessionService) InvalidateCache() {
	s.cache.mu.Lock()
	s.cache.valid = false
	s.cache.mu.Unlock()
}

// SweepExpired removes sessions whose expiry has passed and logs one
// session-expired event per removal. The expiry predicate is re-checked
// against a fresh read right before each delete.
func (s *SessionService) SweepExpired(ctx context.Context) (int, error) {
	now := s.now()

	sessions, err := s.sessionRepo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	removed := 0
	for _, session := range sessions {
		if session.IsActive(now) {
			continue
		}
		current, err := s.sessionRepo.GetByRequestID(ctx, session.RequestID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("failed to re-read session: %w", err)
		}
		if current.IsActive(now) {
			continue
		}
		if err := s.sessionRepo.Delete(ctx, current.RequestID); err != nil {
			return removed, fmt.Errorf("failed to delete expired session: %w", err)
		}
		removed++

		s.recordEvent(model.Event{
			Kind:        model.EventSessionExpired,
			SubjectID:   current.SubjectID,
			ResourceURL: current.ResourceURL,
			RequestID:   current.RequestID,
			Details:     fmt.Sprintf("session expired at %s", current.ExpiresAt.UTC().Format(time.RFC3339)),
		})
	}

	if removed > 0 {
		s.InvalidateCache()
		s.log.Info().Int("removed", removed).Msg("expired sessions swept")
	}
	return removed, nil
}

// ListSessions returns all sessions, newest expiry first
func (s *SessionService) ListSessions(ctx context.Context) ([]*model.Session, error) {
	return s.sessionRepo.List(ctx)
}

func (s *SessionService) recordEvent(event model.Event) {
	if err := s.audit.Record(event); err != nil {
		s.log.Error().Err(err).Str("kind", string(event.Kind)).Msg("failed to record audit event")
	}
}
