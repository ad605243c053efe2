// Package prescription lets doctors issue prescriptions that patients and
// pharmacists look up by QR code.
package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/domain/medicine"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
	"github.com/dhanvantari/dhanvantari/internal/platform/auth"
)

const DefaultListLimit = 100

type AccountLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

type MedicineLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*medicine.Medicine, error)
}

type Service struct {
	prescriptions Repository
	accounts      AccountLookup
	medicines     MedicineLookup
	now           func() time.Time
}

func NewService(prescriptions Repository, accounts AccountLookup, medicines MedicineLookup) *Service {
	return &Service{prescriptions: prescriptions, accounts: accounts, medicines: medicines, now: time.Now}
}

type Input struct {
	PatientID   uuid.UUID    `json:"patient_id" validate:"required"`
	Diagnosis   string       `json:"diagnosis" validate:"required,max=1000"`
	Medications []Medication `json:"medications" validate:"required,min=1,max=20,dive"`
	ValidUntil  string       `json:"valid_until" validate:"required,datetime=2006-01-02"`
	Notes       string       `json:"notes" validate:"max=2000"`
}

func (s *Service) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Create issues an active prescription dated today from the calling doctor.
func (s *Service) Create(ctx context.Context, caller *account.Account, in Input) (*Prescription, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	if caller.Role != auth.RoleDoctor {
		return nil, fmt.Errorf("only doctors can prescribe: %w", apperr.ErrForbidden)
	}
	diagnosis := strings.TrimSpace(in.Diagnosis)
	if diagnosis == "" {
		return nil, apperr.Invalidf("diagnosis is required")
	}
	if len(in.Medications) == 0 {
		return nil, apperr.Invalidf("at least one medication is required")
	}
	validUntil, err := time.Parse(medicine.DateLayout, in.ValidUntil)
	if err != nil {
		return nil, apperr.Invalidf("valid_until must be YYYY-MM-DD")
	}
	today := s.today()
	if validUntil.Before(today) {
		return nil, apperr.Invalidf("valid_until must not be in the past")
	}

	if _, err := s.accounts.GetByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Invalidf("patient %s not found", in.PatientID)
		}
		return nil, err
	}
	lines := make([]Medication, len(in.Medications))
	for i, line := range in.Medications {
		if _, err := s.medicines.GetByID(ctx, line.MedicineID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.Invalidf("medication %s not found", line.MedicineID)
			}
			return nil, err
		}
		line.MedicineName = ""
		line.Dosage = strings.TrimSpace(line.Dosage)
		line.Frequency = strings.TrimSpace(line.Frequency)
		line.Duration = strings.TrimSpace(line.Duration)
		line.Instructions = strings.TrimSpace(line.Instructions)
		lines[i] = line
	}

	code, err := newCode(s.now())
	if err != nil {
		return nil, err
	}
	p := &Prescription{
		PatientID:        in.PatientID,
		DoctorID:         caller.ID,
		Diagnosis:        diagnosis,
		Medications:      lines,
		PrescriptionDate: today,
		ValidUntil:       validUntil,
		Status:           StatusActive,
		Notes:            strings.TrimSpace(in.Notes),
		QRCode:           code,
	}
	if err := s.prescriptions.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}
	return s.enrich(ctx, p), nil
}

func (s *Service) ListAsPatient(ctx context.Context, caller *account.Account, status string) ([]*Prescription, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	if status != "" && !validStatus(status) {
		return nil, apperr.Invalidf("invalid status: %s", status)
	}
	return s.prescriptions.ListByPatient(ctx, caller.ID, status, DefaultListLimit)
}

func (s *Service) ListAsDoctor(ctx context.Context, caller *account.Account) ([]*Prescription, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	return s.prescriptions.ListByDoctor(ctx, caller.ID, DefaultListLimit)
}

// Get returns a prescription to its patient or prescribing doctor.
func (s *Service) Get(ctx context.Context, caller *account.Account, id uuid.UUID) (*Prescription, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Involves(caller.ID) {
		return nil, apperr.ErrForbidden
	}
	return s.enrich(ctx, p), nil
}

// ByCode is the pharmacy lookup of a scanned prescription QR code.
func (s *Service) ByCode(ctx context.Context, caller *account.Account, code string) (*Prescription, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Invalidf("code is required")
	}
	p, err := s.prescriptions.GetByQR(ctx, code)
	if err != nil {
		return nil, err
	}
	if caller.Role != auth.RolePharmacist && !caller.IsAdmin() && !p.Involves(caller.ID) {
		return nil, apperr.ErrForbidden
	}
	return s.enrich(ctx, p), nil
}

// UpdateStatus closes an active prescription. The prescribing doctor may
// complete or cancel it; a pharmacist may only mark it completed once
// dispensed.
func (s *Service) UpdateStatus(ctx context.Context, caller *account.Account, id uuid.UUID, status string) (*Prescription, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	if !validStatus(status) {
		return nil, apperr.Invalidf("invalid status: %s", status)
	}
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case caller.ID == p.DoctorID, caller.IsAdmin():
	case caller.Role == auth.RolePharmacist && status == StatusCompleted:
	default:
		return nil, apperr.ErrForbidden
	}
	if p.Status != StatusActive || status == StatusActive {
		return nil, fmt.Errorf("prescription %s -> %s: %w", p.Status, status, apperr.ErrInvalidTransition)
	}
	if status == StatusCompleted && s.today().After(p.ValidUntil) {
		return nil, apperr.Invalidf("prescription expired on %s", p.ValidUntil.Format(medicine.DateLayout))
	}

	if err := s.prescriptions.UpdateStatus(ctx, id, p.Status, status); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("prescription_id", id.String()).Str("from", p.Status).
		Str("to", status).Msg("prescription status changed")
	p.Status = status
	return s.enrich(ctx, p), nil
}

// enrich fills medicine names. Lines whose medicine is gone read as
// UnknownMedicine.
func (s *Service) enrich(ctx context.Context, p *Prescription) *Prescription {
	for i := range p.Medications {
		line := &p.Medications[i]
		line.MedicineName = UnknownMedicine
		m, err := s.medicines.GetByID(ctx, line.MedicineID)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				zerolog.Ctx(ctx).Warn().Err(err).Str("medicine_id", line.MedicineID.String()).Msg("prescription medicine lookup")
			}
			continue
		}
		line.MedicineName = m.Name
	}
	return p
}
