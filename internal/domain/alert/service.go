package alert

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
	"github.com/dhanvantari/dhanvantari/internal/platform/notification"
)

const DefaultListLimit = 50

var validTypes = map[string]bool{
	TypeMedicineRecall: true, TypeExpiryWarning: true,
	TypePrescriptionReminder: true, TypeVerificationAlert: true,
}

var validSeverities = map[string]bool{
	SeverityInfo: true, SeverityWarning: true, SeverityCritical: true,
}

type AccountLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

type Mailer interface {
	SendTemplate(ctx context.Context, to, templateID string, data map[string]string) error
}

type Service struct {
	alerts   Repository
	accounts AccountLookup
	mailer   Mailer
}

// NewService builds the alert service. A nil mailer disables email delivery.
func NewService(alerts Repository, accounts AccountLookup, mailer Mailer) *Service {
	return &Service{alerts: alerts, accounts: accounts, mailer: mailer}
}

// -- Create --

func (s *Service) Create(ctx context.Context, a *Alert) error {
	return s.create(ctx, a, Email{})
}

// Broadcast creates one copy of tmpl per account and returns how many were
// stored. Duplicate account ids are skipped.
func (s *Service) Broadcast(ctx context.Context, accountIDs []uuid.UUID, tmpl Alert, email Email) (int, error) {
	seen := make(map[uuid.UUID]bool, len(accountIDs))
	n := 0
	for _, id := range accountIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		a := tmpl
		a.AccountID = id
		if err := s.create(ctx, &a, email); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Service) create(ctx context.Context, a *Alert, email Email) error {
	if a.AccountID == uuid.Nil {
		return apperr.Invalidf("account_id is required")
	}
	if a.Title == "" {
		return apperr.Invalidf("title is required")
	}
	if a.Message == "" {
		return apperr.Invalidf("message is required")
	}
	if !validTypes[a.Type] {
		return apperr.Invalidf("invalid type: %s", a.Type)
	}
	if a.Severity == "" {
		a.Severity = SeverityInfo
	}
	if !validSeverities[a.Severity] {
		return apperr.Invalidf("invalid severity: %s", a.Severity)
	}
	a.IsRead = false
	if err := s.alerts.Create(ctx, a); err != nil {
		return err
	}
	if a.Severity == SeverityCritical {
		s.mail(ctx, a, email)
	}
	return nil
}

// mail delivers a critical alert by email. Delivery failures are logged
// and never fail the alert itself.
func (s *Service) mail(ctx context.Context, a *Alert, email Email) {
	if s.mailer == nil || s.accounts == nil {
		return
	}
	log := zerolog.Ctx(ctx)
	acc, err := s.accounts.GetByID(ctx, a.AccountID)
	if err != nil {
		log.Warn().Err(err).Str("account_id", a.AccountID.String()).Msg("alert email: account lookup failed")
		return
	}
	if acc.Email == "" {
		return
	}

	tmpl := email.Template
	data := map[string]string{"name": acc.Name, "title": a.Title, "message": a.Message}
	if tmpl == "" {
		tmpl = notification.TemplateCriticalAlert
	}
	for k, v := range email.Data {
		data[k] = v
	}
	if err := s.mailer.SendTemplate(ctx, acc.Email, tmpl, data); err != nil {
		log.Warn().Err(err).Str("alert_id", a.ID.String()).Msg("alert email failed")
	}
}

// -- Read --

func (s *Service) List(ctx context.Context, caller *account.Account, unreadOnly bool, limit int) ([]*Alert, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.alerts.ListByAccount(ctx, caller.ID, unreadOnly, limit)
}

func (s *Service) UnreadCount(ctx context.Context, caller *account.Account) (int, error) {
	if caller == nil {
		return 0, apperr.ErrUnauthorized
	}
	return s.alerts.CountUnread(ctx, caller.ID)
}

func (s *Service) MarkRead(ctx context.Context, caller *account.Account, id uuid.UUID) (*Alert, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	a, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.AccountID != caller.ID {
		return nil, fmt.Errorf("alert belongs to another account: %w", apperr.ErrForbidden)
	}
	if a.IsRead {
		return a, nil
	}
	if err := s.alerts.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	a.IsRead = true
	return a, nil
}

func (s *Service) MarkAllRead(ctx context.Context, caller *account.Account) (int, error) {
	if caller == nil {
		return 0, apperr.ErrUnauthorized
	}
	return s.alerts.MarkAllRead(ctx, caller.ID)
}
