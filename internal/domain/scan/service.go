package scan

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

type Service struct {
	scans Repository
}

func NewService(scans Repository) *Service {
	return &Service{scans: scans}
}

func (s *Service) History(ctx context.Context, caller *account.Account, limit, offset int) ([]*Scan, int, error) {
	if caller == nil {
		return nil, 0, apperr.ErrUnauthorized
	}
	return s.scans.ListByAccount(ctx, caller.ID, limit, offset)
}

// Get returns a scan to its owner. Anonymous scans are visible to admins only.
func (s *Service) Get(ctx context.Context, caller *account.Account, id uuid.UUID) (*Scan, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	sc, err := s.scans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.IsAdmin() {
		return sc, nil
	}
	if sc.AccountID == nil || *sc.AccountID != caller.ID {
		return nil, fmt.Errorf("scan belongs to another account: %w", apperr.ErrForbidden)
	}
	return sc, nil
}
