package scan

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

var ErrNotFound = fmt.Errorf("scan %w", apperr.ErrNotFound)

type Repository interface {
	Create(ctx context.Context, s *Scan) error
	GetByID(ctx context.Context, id uuid.UUID) (*Scan, error)
	// ListByAccount returns scans newest first with the medicine summary joined.
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Scan, int, error)
	// AccountsForMedicine lists the distinct accounts that scanned a batch or
	// any of its units.
	AccountsForMedicine(ctx context.Context, medicineID uuid.UUID) ([]uuid.UUID, error)
}
