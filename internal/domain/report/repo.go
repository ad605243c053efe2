package report

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

var (
	ErrNotFound      = fmt.Errorf("report %w", apperr.ErrNotFound)
	ErrStatusChanged = fmt.Errorf("report status changed concurrently: %w", apperr.ErrConflict)
)

type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	// ListByStatus returns reports newest first.
	ListByStatus(ctx context.Context, status string, limit int) ([]*Report, error)
	// ListForManufacturer returns reports on the manufacturer's batches,
	// newest first. uuid.Nil lists every report.
	ListForManufacturer(ctx context.Context, manufacturerID uuid.UUID, limit int) ([]*Report, error)
	// UpdateStatus moves a report from one status to another and returns
	// ErrStatusChanged when it is no longer in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
}
