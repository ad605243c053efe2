// Package healthrecord keeps personal medical records and their file
// attachments.
package healthrecord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/domain/medicine"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
	"github.com/dhanvantari/dhanvantari/internal/platform/blobstore"
)

const DefaultListLimit = 100

type AccountLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

type MedicineLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*medicine.Medicine, error)
}

type Service struct {
	records   Repository
	accounts  AccountLookup
	medicines MedicineLookup
	blobs     blobstore.Store
}

func NewService(records Repository, accounts AccountLookup, medicines MedicineLookup, blobs blobstore.Store) *Service {
	return &Service{records: records, accounts: accounts, medicines: medicines, blobs: blobs}
}

// Input is a new record. IsPrivate defaults to true.
type Input struct {
	RecordType  string      `json:"record_type" validate:"required,oneof=prescription diagnosis lab_report vaccination allergy"`
	Title       string      `json:"title" validate:"required,max=200"`
	Description string      `json:"description" validate:"max=5000"`
	DoctorID    *uuid.UUID  `json:"doctor_id"`
	Date        string      `json:"date" validate:"required,datetime=2006-01-02"`
	Medications []uuid.UUID `json:"medications" validate:"max=50"`
	IsPrivate   *bool       `json:"is_private"`
}

func (s *Service) List(ctx context.Context, caller *account.Account, recordType string, limit int) ([]*Record, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	if recordType != "" && !ValidType(recordType) {
		return nil, apperr.Invalidf("invalid record_type: %s", recordType)
	}
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	return s.records.ListByOwner(ctx, caller.ID, recordType, limit)
}

// Create stores a record owned by caller. A named doctor must be a doctor
// account and every medication must reference a stored batch.
func (s *Service) Create(ctx context.Context, caller *account.Account, in Input) (*Record, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	if !ValidType(in.RecordType) {
		return nil, apperr.Invalidf("invalid record_type: %s", in.RecordType)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Invalidf("title is required")
	}
	date, err := time.Parse(medicine.DateLayout, in.Date)
	if err != nil {
		return nil, apperr.Invalidf("date must be YYYY-MM-DD")
	}

	if in.DoctorID != nil {
		doc, err := s.accounts.GetByID(ctx, *in.DoctorID)
		if errors.Is(err, apperr.ErrNotFound) || (err == nil && doc.Role != "doctor") {
			return nil, apperr.Invalidf("doctor_id does not reference a doctor")
		}
		if err != nil {
			return nil, err
		}
	}
	for _, id := range in.Medications {
		if _, err := s.medicines.GetByID(ctx, id); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.Invalidf("medication %s not found", id)
			}
			return nil, err
		}
	}

	rec := &Record{
		OwnerID:     caller.ID,
		RecordType:  in.RecordType,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		DoctorID:    in.DoctorID,
		RecordDate:  date,
		Medications: in.Medications,
		IsPrivate:   in.IsPrivate == nil || *in.IsPrivate,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create health record: %w", err)
	}
	return rec, nil
}

// Get returns a record caller may see.
func (s *Service) Get(ctx context.Context, caller *account.Account, id uuid.UUID) (*Record, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.VisibleTo(caller.ID) {
		return nil, apperr.ErrForbidden
	}
	return rec, nil
}

// Attach stores a file and appends its key to the owner's record.
func (s *Service) Attach(ctx context.Context, caller *account.Account, id uuid.UUID, obj blobstore.Object, content io.Reader) (*blobstore.Object, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != caller.ID {
		return nil, apperr.ErrForbidden
	}

	obj.Key = fmt.Sprintf("health-records/%s/%s", rec.ID, uuid.New())
	stored, err := s.blobs.Put(ctx, obj, content)
	if err != nil {
		return nil, err
	}
	if err := s.records.AddAttachment(ctx, rec.ID, stored.Key); err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), stored.Key); derr != nil {
			zerolog.Ctx(ctx).Error().Err(derr).Str("key", stored.Key).Msg("remove orphaned attachment")
		}
		return nil, fmt.Errorf("add attachment: %w", err)
	}
	return stored, nil
}

// Attachment opens the n-th attachment of a record caller may see.
func (s *Service) Attachment(ctx context.Context, caller *account.Account, id uuid.UUID, n int) (io.ReadCloser, *blobstore.Object, error) {
	rec, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, nil, err
	}
	if n < 0 || n >= len(rec.Attachments) {
		return nil, nil, fmt.Errorf("attachment %d: %w", n, apperr.ErrNotFound)
	}
	body, obj, err := s.blobs.Get(ctx, rec.Attachments[n])
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		return nil, nil, fmt.Errorf("attachment %d: %w", n, apperr.ErrNotFound)
	}
	return body, obj, err
}
