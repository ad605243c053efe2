package healthrecord

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

var ErrNotFound = fmt.Errorf("health record %w", apperr.ErrNotFound)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// ListByOwner returns records newest first. An empty recordType lists all.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, recordType string, limit int) ([]*Record, error)
	AddAttachment(ctx context.Context, id uuid.UUID, key string) error
}
