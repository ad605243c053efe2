package medicine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/domain/alert"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
	"github.com/dhanvantari/dhanvantari/internal/platform/db"
	"github.com/dhanvantari/dhanvantari/internal/platform/notification"
)

const MaxQuantity = 100

var validTypes = map[string]bool{
	"tablet": true, "capsule": true, "syrup": true, "injection": true, "ointment": true,
}

func ValidType(t string) bool { return validTypes[t] }

// ScanIndex finds the accounts that scanned a batch.
type ScanIndex interface {
	AccountsForMedicine(ctx context.Context, medicineID uuid.UUID) ([]uuid.UUID, error)
}

type Alerter interface {
	Broadcast(ctx context.Context, accountIDs []uuid.UUID, tmpl alert.Alert, email alert.Email) (int, error)
}

type Service struct {
	medicines Repository
	units     UnitRepository
	tx        db.TxRunner
	scans     ScanIndex
	alerts    Alerter
}

func NewService(medicines Repository, units UnitRepository, tx db.TxRunner, scans ScanIndex, alerts Alerter) *Service {
	return &Service{medicines: medicines, units: units, tx: tx, scans: scans, alerts: alerts}
}

// -- Batch creation --

// CreateBatch stores a minted batch and its derived units in one
// transaction. m.TokenID must already be known.
func (s *Service) CreateBatch(ctx context.Context, m *Medicine) ([]*Unit, error) {
	if m.TokenID == "" {
		return nil, apperr.Invalidf("token_id is required")
	}
	if m.Quantity < 1 || m.Quantity > MaxQuantity {
		return nil, apperr.Invalidf("quantity must be between 1 and %d", MaxQuantity)
	}
	if !validTypes[m.MedicineType] {
		return nil, apperr.Invalidf("invalid medicine_type: %s", m.MedicineType)
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.QRPayload = QRCode{Contract: m.ContractAddress, TokenID: m.TokenID, Batch: m.BatchNumber}.String()
	m.IsActive = true
	m.IsRecalled = false
	if m.VerificationStatus == "" {
		m.VerificationStatus = "verified"
	}

	units := BuildUnits(m)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.medicines.Create(ctx, m); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		for _, u := range units {
			if err := s.units.Create(ctx, u); err != nil {
				return fmt.Errorf("create unit %d: %w", u.SerialNumber, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}

// BatchExists reports whether the manufacturer already minted batch.
func (s *Service) BatchExists(ctx context.Context, manufacturerID uuid.UUID, batch string) (bool, error) {
	return s.medicines.ExistsForManufacturer(ctx, manufacturerID, batch)
}

// -- Lookups --

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return s.medicines.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, caller *account.Account, limit, offset int) ([]*Medicine, int, error) {
	if caller == nil {
		return nil, 0, apperr.ErrUnauthorized
	}
	owner := caller.ID
	if caller.IsAdmin() {
		owner = uuid.Nil
	}
	return s.medicines.ListByManufacturer(ctx, owner, limit, offset)
}

func (s *Service) Stats(ctx context.Context, caller *account.Account) (*Stats, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	return s.medicines.Stats(ctx, caller.ID)
}

func (s *Service) Units(ctx context.Context, caller *account.Account, id uuid.UUID, limit, offset int) ([]*Unit, int, error) {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return nil, 0, err
	}
	return s.units.ListByMedicine(ctx, id, limit, offset)
}

// LabelUnits returns a batch the caller owns with all of its units.
func (s *Service) LabelUnits(ctx context.Context, caller *account.Account, id uuid.UUID) (*Medicine, []*Unit, error) {
	m, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, nil, err
	}
	units, _, err := s.units.ListByMedicine(ctx, id, MaxQuantity, 0)
	if err != nil {
		return nil, nil, err
	}
	return m, units, nil
}

// LabelToken returns the token id printed on one label of a batch the
// caller owns: the batch token for serial 0, else the unit's.
func (s *Service) LabelToken(ctx context.Context, caller *account.Account, id uuid.UUID, serial int) (*Medicine, string, error) {
	if serial == 0 {
		m, err := s.owned(ctx, caller, id)
		if err != nil {
			return nil, "", err
		}
		return m, m.TokenID, nil
	}
	m, units, err := s.LabelUnits(ctx, caller, id)
	if err != nil {
		return nil, "", err
	}
	for _, u := range units {
		if u.SerialNumber == serial {
			return m, u.TokenID, nil
		}
	}
	return nil, "", fmt.Errorf("unit %d: %w", serial, ErrUnitNotFound)
}

// -- Mutations --

func (s *Service) Toggle(ctx context.Context, caller *account.Account, id uuid.UUID) (*Medicine, error) {
	m, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if m.IsRecalled && !m.IsActive {
		return nil, fmt.Errorf("recalled batch cannot be reactivated: %w", apperr.ErrConflict)
	}
	if err := s.medicines.SetActive(ctx, id, !m.IsActive); err != nil {
		return nil, err
	}
	m.IsActive = !m.IsActive
	return m, nil
}

// RecallResult reports the recalled batch and how many scanners were alerted.
type RecallResult struct {
	Medicine *Medicine `json:"medicine"`
	Alerted  int       `json:"alerted"`
}

// Recall flags a batch and alerts every account that scanned it. Alert
// failures are logged; the recall itself stands.
func (s *Service) Recall(ctx context.Context, caller *account.Account, id uuid.UUID) (*RecallResult, error) {
	m, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if m.IsRecalled {
		return nil, fmt.Errorf("batch already recalled: %w", apperr.ErrConflict)
	}
	if err := s.medicines.SetRecalled(ctx, id); err != nil {
		return nil, err
	}
	m.IsRecalled, m.IsActive = true, false

	log := zerolog.Ctx(ctx)
	res := &RecallResult{Medicine: m}
	if s.scans == nil || s.alerts == nil {
		return res, nil
	}
	ids, err := s.scans.AccountsForMedicine(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("medicine_id", id.String()).Msg("recall: list scanners")
		return res, nil
	}

	related := m.ID
	tmpl := alert.Alert{
		Type:            alert.TypeMedicineRecall,
		Title:           fmt.Sprintf("Recall: %s", m.Name),
		Message:         fmt.Sprintf("%s batch %s from %s has been recalled. Stop using it and consult your pharmacist.", m.Name, m.BatchNumber, m.ManufacturerName),
		Severity:        alert.SeverityCritical,
		RelatedEntityID: &related,
	}
	email := alert.Email{
		Template: notification.TemplateRecall,
		Data:     map[string]string{"medicine": m.Name, "batch": m.BatchNumber, "manufacturer": m.ManufacturerName},
	}
	n, err := s.alerts.Broadcast(ctx, ids, tmpl, email)
	if err != nil {
		log.Error().Err(err).Str("medicine_id", id.String()).Int("alerted", n).Msg("recall: broadcast")
	}
	res.Alerted = n
	log.Info().Str("medicine_id", id.String()).Str("batch", m.BatchNumber).Int("alerted", n).Msg("batch recalled")
	return res, nil
}

// Delete removes a batch and, by cascade, its units.
func (s *Service) Delete(ctx context.Context, caller *account.Account, id uuid.UUID) error {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}
	return s.medicines.Delete(ctx, id)
}

// owned loads a batch the caller may mutate: its manufacturer or an admin.
func (s *Service) owned(ctx context.Context, caller *account.Account, id uuid.UUID) (*Medicine, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	m, err := s.medicines.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && m.ManufacturerID != caller.ID {
		return nil, fmt.Errorf("batch belongs to another manufacturer: %w", apperr.ErrForbidden)
	}
	return m, nil
}
