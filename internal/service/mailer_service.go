package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/email"
	"github.com/gatepass/gatepass/internal/logger"
	"github.com/gatepass/gatepass/internal/model"
	"github.com/gatepass/gatepass/internal/repository"
)

const mailTimeout = 10 * time.Second

// MailerService sends notification emails for request lifecycle changes.
// Delivery is asynchronous and best effort: a mail failure is logged and
// never surfaces to the operation that triggered it.
type MailerService struct {
	sender     email.Sender
	deviceRepo *repository.DeviceRepository
	cfg        *config.Config
	log        *logger.Logger
}

// NewMailerService creates a new MailerService
func NewMailerService(
	sender email.Sender,
	deviceRepo *repository.DeviceRepository,
	cfg *config.Config,
	log *logger.Logger,
) *MailerService {
	return &MailerService{
		sender:     sender,
		deviceRepo: deviceRepo,
		cfg:        cfg,
		log:        log.WithComponent("mailer_service"),
	}
}

// RequestSubmitted notifies the approver mailbox of a new pending request.
func (m *MailerService) RequestSubmitted(req *model.AccessRequest) {
	to := m.cfg.Email.NotifyAddress
	if to == "" {
		return
	}

	app := m.cfg.Email.AppName
	r := *req
	m.deliver(email.Message{
		To:       to,
		Subject:  fmt.Sprintf("[%s] New access request from %s", app, r.SubjectID),
		HTMLBody: email.RequestSubmittedHTML(app, r.SubjectID, r.ResourceURL, r.DurationMinutes),
		TextBody: email.RequestSubmittedText(app, r.SubjectID, r.ResourceURL, r.DurationMinutes),
	}, r.ID)
}

// RequestResolved notifies the requesting subject of the outcome. The
// address comes from the subject's most recently seen device; subjects
// with no device email on record are skipped.
func (m *MailerService) RequestResolved(req *model.AccessRequest) {
	app := m.cfg.Email.AppName
	r := *req

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()

		to := m.subjectAddress(ctx, r.SubjectID)
		if to == "" {
			m.log.Debug().
				Str("request_id", r.ID).
				Str("subject_id", r.SubjectID).
				Msg("no device email on record, skipping resolution notice")
			return
		}

		var msg email.Message
		switch r.Status {
		case model.RequestApproved:
			if r.ExpiresAt == nil {
				return
			}
			msg = email.Message{
				To:       to,
				Subject:  fmt.Sprintf("[%s] Access approved", app),
				HTMLBody: email.RequestApprovedHTML(app, r.ResourceURL, *r.ExpiresAt),
				TextBody: email.RequestApprovedText(app, r.ResourceURL, *r.ExpiresAt),
			}
		case model.RequestDenied:
			msg = email.Message{
				To:       to,
				Subject:  fmt.Sprintf("[%s] Access denied", app),
				TextBody: email.RequestDeniedText(app, r.ResourceURL),
			}
		default:
			return
		}

		m.send(ctx, msg, r.ID)
	}()
}

// deliver sends a message on its own deadline, detached from the caller.
func (m *MailerService) deliver(msg email.Message, requestID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		m.send(ctx, msg, requestID)
	}()
}

func (m *MailerService) send(ctx context.Context, msg email.Message, requestID string) {
	if err := m.sender.Send(ctx, msg); err != nil {
		m.log.Warn().
			Err(err).
			Str("request_id", requestID).
			Str("to", msg.To).
			Msg("failed to send notification email")
		return
	}
	m.log.Debug().
		Str("request_id", requestID).
		Str("to", msg.To).
		Msg("notification email sent")
}

// subjectAddress returns the display email of the subject's most
// recently seen device, or "" when none is recorded.
func (m *MailerService) subjectAddress(ctx context.Context, subjectID string) string {
	devices, err := m.deviceRepo.List(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to list devices for mail lookup")
		return ""
	}

	var best *model.Device
	for _, d := range devices {
		if d.SubjectID != subjectID || d.DisplayEmail == "" {
			continue
		}
		if best == nil || d.LastSeen.After(best.LastSeen) {
			best = d
		}
	}
	if best == nil {
		return ""
	}
	return best.DisplayEmail
}
