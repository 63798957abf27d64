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

// Request ledger errors
var (
	ErrRequestNotFound  = errors.New("request not found")
	ErrRequestResolved  = errors.New("request already resolved")
	ErrConcurrentUpdate = errors.New("request modified concurrently")
)

// RequestService is the access request ledger. Requests are appended by
// Submit and mutated only by Approve and Deny; they are never deleted.
type RequestService struct {
	requestRepo *repository.RequestRepository
	sessions    *SessionService
	audit       *AuditService
	// mailer is optional; nil disables notification emails.
	mailer *MailerService
	cfg    *config.Config
	log    *logger.Logger

	// mu serializes resolutions; the store has no cross-key
	// transactions, so approve must not interleave with another write
	// between its read and its writes.
	mu  sync.Mutex
	now func() time.Time
}

// NewRequestService creates a new RequestService
func NewRequestService(
	requestRepo *repository.RequestRepository,
	sessions *SessionService,
	audit *AuditService,
	mailer *MailerService,
	cfg *config.Config,
	log *logger.Logger,
) *RequestService {
	return &RequestService{
		requestRepo: requestRepo,
		sessions:    sessions,
		audit:       audit,
		mailer:      mailer,
		cfg:         cfg,
		log:         log.WithComponent("request_service"),
		now:         time.Now,
	}
}

// SubmitInput carries the fields of a new access request
type SubmitInput struct {
	SubjectID       string
	ResourceURL     string
	DurationMinutes int
	DurationKind    model.DurationKind
}

// Submit validates the input and appends a new pending request
func (s *RequestService) Submit(ctx context.Context, in SubmitInput) (*model.AccessRequest, error) {
	if in.SubjectID == "" || in.ResourceURL == "" {
		return nil, fmt.Errorf("%w: subjectId and resourceUrl are required", ErrInvalidInput)
	}
	switch in.DurationKind {
	case model.DurationPreset:
		if in.DurationMinutes <= 0 {
			return nil, fmt.Errorf("%w: preset duration must be positive", ErrInvalidDuration)
		}
	case model.DurationCustom:
		if in.DurationMinutes < 1 || in.DurationMinutes > s.cfg.Access.MaxCustomDurationMinutes {
			return nil, fmt.Errorf("%w: custom duration must be within [1, %d] minutes",
				ErrInvalidDuration, s.cfg.Access.MaxCustomDurationMinutes)
		}
	default:
		return nil, fmt.Errorf("%w: unknown duration kind %q", ErrInvalidInput, in.DurationKind)
	}

	req := &model.AccessRequest{
		ID:              generateID("req"),
		SubjectID:       in.SubjectID,
		ResourceURL:     in.ResourceURL,
		DurationMinutes: in.DurationMinutes,
		DurationKind:    in.DurationKind,
		Status:          model.RequestPending,
		CreatedAt:       s.now(),
		Version:         1,
	}
	if err := s.requestRepo.Create(ctx, req); err != nil {
		return nil, err
	}

	s.recordEvent(model.Event{
		Kind:        model.EventRequest,
		SubjectID:   req.SubjectID,
		ResourceURL: req.ResourceURL,
		RequestID:   req.ID,
		Details:     fmt.Sprintf("requested %d minute access (%s)", req.DurationMinutes, req.DurationKind),
	})
	if s.mailer != nil {
		s.mailer.RequestSubmitted(req)
	}
	s.log.Info().
		Str("request_id", req.ID).
		Str("subject_id", req.SubjectID).
		Int("duration_minutes", req.DurationMinutes).
		Msg("access request submitted")
	return req, nil
}

// Approve resolves a pending request, creating its session with the
// same expiry. A request that already reached a terminal status is
// reported with ErrRequestResolved and left untouched.
func (s *RequestService) Approve(ctx context.Context, requestID, approverID string) (*model.AccessRequest, error) {
	return s.resolve(ctx, requestID, approverID, model.RequestApproved)
}

// Deny resolves a pending request without granting access
func (s *RequestService) Deny(ctx context.Context, requestID, approverID string) (*model.AccessRequest, error) {
	return s.resolve(ctx, requestID, approverID, model.RequestDenied)
}

// resolve applies a terminal status as one unit of work: read, check
// still pending, re-read to detect a racing write via the version and
// status, then write the session (approvals) and the request. A
// detected race retries once from a fresh read.
func (s *RequestService) resolve(ctx context.Context, requestID, approverID string, status model.RequestStatus) (*model.AccessRequest, error) {
	if approverID == "" {
		return nil, fmt.Errorf("%w: approverId is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		req, err := s.requestRepo.GetByID(ctx, requestID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		if err != nil {
			return nil, err
		}
		if req.IsResolved() {
			return req, ErrRequestResolved
		}

		now := s.now()
		updated := *req
		updated.Status = status
		updated.Version = req.Version + 1
		if status == model.RequestApproved {
			expiresAt := now.Add(req.Duration())
			updated.ApprovedBy = &approverID
			updated.ApprovedAt = &now
			updated.ExpiresAt = &expiresAt
		}

		check, err := s.requestRepo.GetByID(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if check.Version != req.Version || check.Status != req.Status {
			continue
		}

		// Session before request: a crash here leaves a pending request
		// whose session is adopted or replaced on the next attempt,
		// never an approved request without a session.
		if status == model.RequestApproved {
			if err := s.createSessionFor(ctx, &updated, now); err != nil {
				return nil, err
			}
		}

		if err := s.requestRepo.Update(ctx, &updated); err != nil {
			if status == model.RequestApproved {
				if rbErr := s.sessions.Remove(ctx, updated.ID); rbErr != nil {
					s.log.Error().Err(rbErr).Str("request_id", updated.ID).
						Msg("failed to unwind session after request write failure")
				}
			}
			return nil, err
		}

		s.recordEvent(resolutionEvent(&updated, approverID))
		if s.mailer != nil {
			s.mailer.RequestResolved(&updated)
		}
		s.log.Info().
			Str("request_id", updated.ID).
			Str("approver_id", approverID).
			Str("status", string(updated.Status)).
			Msg("access request resolved")
		return &updated, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrConcurrentUpdate, requestID)
}

// createSessionFor grants the session for an approval. A leftover
// session from an interrupted earlier attempt is replaced so the expiry
// always matches this approval.
func (s *RequestService) createSessionFor(ctx context.Context, req *model.AccessRequest, now time.Time) error {
	session := &model.Session{
		RequestID:   req.ID,
		SubjectID:   req.SubjectID,
		ResourceURL: req.ResourceURL,
		CreatedAt:   now,
		ExpiresAt:   *req.ExpiresAt,
	}
	err := s.sessions.CreateSession(ctx, session)
	if errors.Is(err, ErrSessionExists) {
		if err := s.sessions.Remove(ctx, req.ID); err != nil {
			return err
		}
		err = s.sessions.CreateSession(ctx, session)
	}
	return err
}

func resolutionEvent(req *model.AccessRequest, approverID string) model.Event {
	if req.Status == model.RequestApproved {
		return model.Event{
			Kind:        model.EventApproval,
			SubjectID:   req.SubjectID,
			ResourceURL: req.ResourceURL,
			RequestID:   req.ID,
			ApproverID:  approverID,
			Details:     fmt.Sprintf("approved for %d minutes", req.DurationMinutes),
		}
	}
	return model.Event{
		Kind:        model.EventDenial,
		SubjectID:   req.SubjectID,
		ResourceURL: req.ResourceURL,
		RequestID:   req.ID,
		ApproverID:  approverID,
		Details:     "request denied",
	}
}

// ListPending returns pending requests, newest first
func (s *RequestService) ListPending(ctx context.Context) ([]*model.AccessRequest, error) {
	requests, err := s.requestRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]*model.AccessRequest, 0, len(requests))
	for _, req := range requests {
		if req.Status == model.RequestPending {
			pending = append(pending, req)
		}
	}
	return pending, nil
}

// ListAll returns every request, newest first
func (s *RequestService) ListAll(ctx context.Context) ([]*model.AccessRequest, error) {
	return s.requestRepo.List(ctx)
}

func (s *RequestService) recordEvent(event model.Event) {
	if err := s.audit.Record(event); err != nil {
		s.log.Error().Err(err).Str("kind", string(event.Kind)).Msg("failed to record audit event")
	}
}
