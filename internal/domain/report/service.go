// Package report collects consumer reports about suspicious medicines and
// routes them to the manufacturer of the matching batch.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/domain/alert"
	"github.com/dhanvantari/dhanvantari/internal/domain/medicine"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

const (
	PublicLimit       = 20
	ManufacturerLimit = 50
)

// MedicineLookup finds the batch a report refers to.
type MedicineLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*medicine.Medicine, error)
	GetByQR(ctx context.Context, payload string) (*medicine.Medicine, error)
	GetByBatchNumber(ctx context.Context, batch string) (*medicine.Medicine, error)
}

type Alerter interface {
	Create(ctx context.Context, a *alert.Alert) error
}

type Service struct {
	reports   Repository
	medicines MedicineLookup
	alerts    Alerter
}

func NewService(reports Repository, medicines MedicineLookup, alerts Alerter) *Service {
	return &Service{reports: reports, medicines: medicines, alerts: alerts}
}

// Input is a submitted report. Every field but Reason is optional.
type Input struct {
	MedicineName string `json:"medicine_name" validate:"max=200"`
	BatchNumber  string `json:"batch_number" validate:"max=100"`
	Reason       string `json:"reason" validate:"required,max=200"`
	Description  string `json:"description" validate:"max=2000"`
	Location     string `json:"location" validate:"max=200"`
	QRPayload    string `json:"qr_payload" validate:"max=2000"`
}

// Create stores a report from caller, who may be anonymous. A report whose
// QR payload or batch number matches a batch is linked to it and its
// manufacturer is alerted.
func (s *Service) Create(ctx context.Context, caller *account.Account, in Input) (*Report, error) {
	r := &Report{
		MedicineName: strings.TrimSpace(in.MedicineName),
		BatchNumber:  strings.TrimSpace(in.BatchNumber),
		Reason:       strings.TrimSpace(in.Reason),
		Description:  strings.TrimSpace(in.Description),
		Location:     strings.TrimSpace(in.Location),
		QRPayload:    strings.TrimSpace(in.QRPayload),
		Status:       StatusPending,
	}
	if r.Reason == "" {
		return nil, apperr.Invalidf("reason is required")
	}
	if caller != nil {
		id := caller.ID
		r.ReporterID = &id
	}

	m, err := s.match(ctx, r)
	if err != nil {
		return nil, err
	}
	if m != nil {
		id := m.ID
		r.MedicineID = &id
		if r.MedicineName == "" {
			r.MedicineName = m.Name
		}
		if r.BatchNumber == "" {
			r.BatchNumber = m.BatchNumber
		}
	}

	if err := s.reports.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	if m != nil {
		s.notify(ctx, m, r)
	}
	return r, nil
}

func (s *Service) match(ctx context.Context, r *Report) (*medicine.Medicine, error) {
	if r.QRPayload != "" {
		m, err := s.medicines.GetByQR(ctx, r.QRPayload)
		if err == nil || !errors.Is(err, apperr.ErrNotFound) {
			return m, err
		}
	}
	if r.BatchNumber != "" {
		m, err := s.medicines.GetByBatchNumber(ctx, r.BatchNumber)
		if err == nil || !errors.Is(err, apperr.ErrNotFound) {
			return m, err
		}
	}
	return nil, nil
}

func (s *Service) notify(ctx context.Context, m *medicine.Medicine, r *Report) {
	if s.alerts == nil {
		return
	}
	id := r.ID
	a := &alert.Alert{
		AccountID:       m.ManufacturerID,
		Type:            alert.TypeVerificationAlert,
		Severity:        alert.SeverityWarning,
		Title:           "Suspicious medicine reported",
		Message:         fmt.Sprintf("Batch %s of %s was reported: %s", m.BatchNumber, m.Name, r.Reason),
		RelatedEntityID: &id,
	}
	if err := s.alerts.Create(ctx, a); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("report_id", r.ID.String()).Msg("alert manufacturer of report")
	}
}

// Public lists the newest resolved reports.
func (s *Service) Public(ctx context.Context) ([]*Report, error) {
	return s.reports.ListByStatus(ctx, StatusResolved, PublicLimit)
}

// ForManufacturer lists reports on the caller's batches. Admins see all.
func (s *Service) ForManufacturer(ctx context.Context, caller *account.Account) ([]*Report, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	owner := caller.ID
	if caller.IsAdmin() {
		owner = uuid.Nil
	}
	return s.reports.ListForManufacturer(ctx, owner, ManufacturerLimit)
}

// UpdateStatus applies a status transition. Only the manufacturer of the
// linked batch or an admin may change a report.
func (s *Service) UpdateStatus(ctx context.Context, caller *account.Account, id uuid.UUID, status string) (*Report, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	if !validStatus(status) {
		return nil, apperr.Invalidf("invalid status: %s", status)
	}

	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, r); err != nil {
		return nil, err
	}
	if !canTransition(r.Status, status) {
		return nil, fmt.Errorf("report %s -> %s: %w", r.Status, status, apperr.ErrInvalidTransition)
	}

	if err := s.reports.UpdateStatus(ctx, id, r.Status, status); err != nil {
		return nil, err
	}
	r.Status = status
	return r, nil
}

func (s *Service) authorize(ctx context.Context, caller *account.Account, r *Report) error {
	if caller.IsAdmin() {
		return nil
	}
	if r.MedicineID == nil {
		return apperr.ErrForbidden
	}
	m, err := s.medicines.GetByID(ctx, *r.MedicineID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.ErrForbidden
	}
	if err != nil {
		return err
	}
	if m.ManufacturerID != caller.ID {
		return apperr.ErrForbidden
	}
	return nil
}
