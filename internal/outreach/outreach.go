// Package outreach sends recruiter emails to candidates and records the
// contact in the interaction ledger.
package outreach

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/djlord-it/talentledger/internal/domain"
	"github.com/djlord-it/talentledger/internal/ledger"
	"github.com/djlord-it/talentledger/internal/logging"
	"github.com/djlord-it/talentledger/internal/workflow"
)

// Sessions resolves the ledger manager for a recruiter.
type Sessions interface {
	Get(ctx context.Context, recruiterID uuid.UUID) (*ledger.Manager, error)
}

type EntityStore interface {
	GetCandidateByID(ctx context.Context, id uuid.UUID) (domain.Candidate, error)
}

// Notifier is the best-effort contact notification.
type Notifier interface {
	NotifyCandidateContacted(ctx context.Context, candidate domain.Candidate, subject, message string) workflow.NotifyResult
}

type EmailRequest struct {
	CandidateID uuid.UUID
	To          string
	Subject     string
	Message     string
}

// MissingFieldsError lists mandatory request fields that were empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// SendError wraps a mail delivery failure. Nothing was recorded.
type SendError struct {
	Err error
}

func (e *SendError) Error() string { return fmt.Sprintf("send email: %v", e.Err) }

func (e *SendError) Unwrap() error { return e.Err }

type Service struct {
	mailer   Mailer
	sessions Sessions
	entities EntityStore
	notifier Notifier
	from     string
	logger   *zap.Logger
}

func NewService(mailer Mailer, sessions Sessions, entities EntityStore, notifier Notifier, from string) *Service {
	return &Service{
		mailer:   mailer,
		sessions: sessions,
		entities: entities,
		notifier: notifier,
		from:     from,
		logger:   zap.NewNop(),
	}
}

func (s *Service) WithLogger(logger *zap.Logger) *Service {
	s.logger = logging.Component(logger, "outreach")
	return s
}

// SendCandidateEmail sends the email and then, best-effort, appends an
// email_sent interaction and notifies the automation endpoint. Once the
// mail is sent the call succeeds regardless of what follows.
func (s *Service) SendCandidateEmail(ctx context.Context, recruiterID uuid.UUID, req EmailRequest) error {
	if err := validate(req); err != nil {
		return err
	}

	err := s.mailer.Send(ctx, Message{
		From:    s.from,
		To:      req.To,
		Subject: req.Subject,
		HTML:    renderHTML(req.Message),
	})
	if err != nil {
		return &SendError{Err: err}
	}

	logger := s.logger.With(
		zap.String(logging.FieldRecruiterID, recruiterID.String()),
		zap.String(logging.FieldCandidateID, req.CandidateID.String()),
	)
	logger.Info("candidate email sent")

	if req.CandidateID == uuid.Nil {
		return nil
	}

	s.recordContact(ctx, logger, recruiterID, req)
	s.notify(ctx, logger, req)
	return nil
}

func (s *Service) recordContact(ctx context.Context, logger *zap.Logger, recruiterID uuid.UUID, req EmailRequest) {
	m, err := s.sessions.Get(ctx, recruiterID)
	if err != nil {
		logger.Warn("email sent but interaction not recorded", zap.Error(err))
		return
	}
	_, err = m.Append(ctx, ledger.AppendInput{
		CandidateID: req.CandidateID,
		Kind:        domain.InteractionEmailSent,
		Details:     map[string]any{"subject": req.Subject, "to": req.To},
	})
	if err != nil {
		logger.Warn("email sent but interaction not recorded", zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, logger *zap.Logger, req EmailRequest) {
	if s.notifier == nil {
		return
	}
	candidate, err := s.entities.GetCandidateByID(ctx, req.CandidateID)
	if err != nil {
		logger.Warn("contact notification skipped: candidate lookup failed", zap.Error(err))
		return
	}
	s.notifier.NotifyCandidateContacted(ctx, candidate, req.Subject, req.Message).Log(logger)
}

func validate(req EmailRequest) error {
	var missing []string
	if strings.TrimSpace(req.To) == "" {
		missing = append(missing, "candidateEmail")
	}
	if strings.TrimSpace(req.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(req.Message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

// renderHTML escapes the plain-text message and keeps its line breaks.
func renderHTML(message string) string {
	escaped := html.EscapeString(message)
	return "<p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p>"
}
