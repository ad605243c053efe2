package prescription

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

var (
	ErrNotFound      = fmt.Errorf("prescription %w", apperr.ErrNotFound)
	ErrStatusChanged = fmt.Errorf("prescription status changed concurrently: %w", apperr.ErrConflict)
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	GetByQR(ctx context.Context, code string) (*Prescription, error)
	// ListByPatient returns prescriptions newest first. An empty status lists all.
	ListByPatient(ctx context.Context, patientID uuid.UUID, status string, limit int) ([]*Prescription, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]*Prescription, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
}
