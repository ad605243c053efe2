package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

var (
	ErrNotFound    = fmt.Errorf("account %w", apperr.ErrNotFound)
	ErrWalletTaken = fmt.Errorf("wallet is bound to another account: %w", apperr.ErrConflict)
)

type Repository interface {
	// Upsert inserts by subject or refreshes email and name. The stored role
	// is replaced only when overrideRole is true.
	Upsert(ctx context.Context, a *Account, overrideRole bool) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetBySubject(ctx context.Context, subject string) (*Account, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role string) error
	// SetWallet returns ErrWalletTaken when another account holds address.
	SetWallet(ctx context.Context, id uuid.UUID, address string) error
	List(ctx context.Context, role string, limit, offset int) ([]*Account, int, error)
}
