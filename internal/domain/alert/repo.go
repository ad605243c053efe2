package alert

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

var ErrNotFound = fmt.Errorf("alert %w", apperr.ErrNotFound)

type Repository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	// ListByAccount returns alerts newest first.
	ListByAccount(ctx context.Context, accountID uuid.UUID, unreadOnly bool, limit int) ([]*Alert, error)
	CountUnread(ctx context.Context, accountID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context, accountID uuid.UUID) (int, error)
}
