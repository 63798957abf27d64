package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/logger"
	"github.com/gatepass/gatepass/internal/model"
	"github.com/gatepass/gatepass/internal/repository"
)

// flushTimeout bounds the store writes of a single flush
const flushTimeout = 10 * time.Second

// AuditService buffers audit events in memory and persists them in
// batches: immediately when the queue reaches the batch size, otherwise
// after the idle flush interval via a single pending timer. Store
// failures are logged and contained; they never reach the operation
// that recorded the event.
type AuditService struct {
	auditRepo *repository.AuditRepository
	cfg       *config.Config
	log       *logger.Logger

	mu     sync.Mutex
	queue  []*model.AuditLogEntry
	timer  *time.Timer
	seq    uint64
	closed bool

	now func() time.Time
}

// NewAuditService creates a new AuditService
func NewAuditService(
	auditRepo *repository.AuditRepository,
	cfg *config.Config,
	log *logger.Logger,
) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
		cfg:       cfg,
		log:       log.WithComponent("audit_service"),
		now:       time.Now,
	}
}

// Record validates and enqueues an event. Apart from rejecting an
// unknown kind it always succeeds; persistence happens on flush.
func (s *AuditService) Record(event model.Event) error {
	if !model.ValidEventKind(event.Kind) {
		return fmt.Errorf("%w: %q", ErrInvalidEvent, event.Kind)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Debug().Str("kind", string(event.Kind)).Msg("audit event dropped after close")
		return nil
	}

	now := s.now()
	s.seq++
	s.queue = append(s.queue, &model.AuditLogEntry{
		ID:        entryID(now, s.seq),
		Timestamp: now,
		Event:     event,
	})

	if len(s.queue) >= s.cfg.Audit.BatchSize {
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()
		s.flush(batch)
		return nil
	}

	// At most one idle flush outstanding
	if s.timer == nil {
		s.timer = time.AfterFunc(s.cfg.Audit.FlushInterval, s.Flush)
	}
	s.mu.Unlock()
	return nil
}

// Flush synchronously persists everything queued
func (s *AuditService) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	batch := s.queue
	s.queue = nil
	s.mu.Unlock()

	if len(batch) > 0 {
		s.flush(batch)
	}
}

// Close flushes anything still queued and stops accepting events.
// Teardown flushing is best-effort; an abrupt exit loses the queue.
func (s *AuditService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Flush()
}

// Pending returns how many events await flushing
func (s *AuditService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *AuditService) flush(batch []*model.AuditLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := s.auditRepo.Append(ctx, batch); err != nil {
		s.log.Warn().Err(err).Int("dropped", len(batch)).Msg("audit flush failed")
		return
	}
	if pruned, err := s.auditRepo.Prune(ctx, s.cfg.Audit.RetentionCap); err != nil {
		s.log.Warn().Err(err).Msg("audit prune failed")
	} else if pruned > 0 {
		s.log.Debug().Int("pruned", pruned).Msg("audit log pruned to retention cap")
	}
	s.log.Debug().Int("flushed", len(batch)).Msg("audit batch persisted")
}

// AuditQuery filters Query output; zero values match everything
type AuditQuery struct {
	Kind            model.EventKind
	SubjectContains string
	From            *time.Time
	To              *time.Time
}

// Query returns persisted entries matching q, newest first. Entries
// still queued in memory are not visible until flushed.
func (s *AuditService) Query(ctx context.Context, q AuditQuery) ([]*model.AuditLogEntry, error) {
	if q.Kind != "" && !model.ValidEventKind(q.Kind) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEvent, q.Kind)
	}

	entries, err := s.auditRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}

	matched := make([]*model.AuditLogEntry, 0, len(entries))
	for _, entry := range entries {
		if q.Kind != "" && entry.Kind != q.Kind {
			continue
		}
		if q.SubjectContains != "" && !strings.Contains(entry.SubjectID, q.SubjectContains) {
			continue
		}
		if q.From != nil && entry.Timestamp.Before(*q.From) {
			continue
		}
		if q.To != nil && entry.Timestamp.After(*q.To) {
			continue
		}
		matched = append(matched, entry)
	}
	return matched, nil
}

// entryID builds a key whose lexicographic order matches event order,
// so pruning the smallest keys always drops the oldest entries
func entryID(at time.Time, seq uint64) string {
	return fmt.Sprintf("%020d-%06d", at.UnixNano(), seq%1000000)
}
