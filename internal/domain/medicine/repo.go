package medicine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

var (
	ErrNotFound     = fmt.Errorf("medicine %w", apperr.ErrNotFound)
	ErrUnitNotFound = fmt.Errorf("medicine unit %w", apperr.ErrNotFound)
	ErrDuplicate    = fmt.Errorf("batch already minted: %w", apperr.ErrConflict)
)

type Repository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	GetByQR(ctx context.Context, payload string) (*Medicine, error)
	GetByTokenID(ctx context.Context, tokenID string) (*Medicine, error)
	// GetByBatchNumber returns the most recently minted batch with that number.
	GetByBatchNumber(ctx context.Context, batch string) (*Medicine, error)
	ExistsForManufacturer(ctx context.Context, manufacturerID uuid.UUID, batch string) (bool, error)
	// ListByManufacturer lists all batches when manufacturerID is uuid.Nil.
	ListByManufacturer(ctx context.Context, manufacturerID uuid.UUID, limit, offset int) ([]*Medicine, int, error)
	Stats(ctx context.Context, manufacturerID uuid.UUID) (*Stats, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetRecalled(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type UnitRepository interface {
	Create(ctx context.Context, u *Unit) error
	GetByQR(ctx context.Context, payload string) (*Unit, error)
	GetByTokenID(ctx context.Context, tokenID string) (*Unit, error)
	ListByMedicine(ctx context.Context, medicineID uuid.UUID, limit, offset int) ([]*Unit, int, error)
}
