package account

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
	"github.com/dhanvantari/dhanvantari/internal/platform/chain"
)

var validRoles = map[string]bool{
	"admin": true, "user": true, "doctor": true, "pharmacist": true, "manufacturer": true,
}

func ValidRole(role string) bool { return validRoles[role] }

type Service struct {
	accounts Repository
}

func NewService(accounts Repository) *Service {
	return &Service{accounts: accounts}
}

// Ensure resolves an identity to its account, creating it on first sight.
// The first recognised role in roles becomes the account role; without one
// a new account is a plain user and an existing account keeps its role.
func (s *Service) Ensure(ctx context.Context, subject, email, name string, roles []string) (*Account, error) {
	if subject == "" {
		return nil, apperr.Invalidf("subject is required")
	}
	a := &Account{Subject: subject, Email: email, Name: name, Role: "user"}
	override := false
	for _, r := range roles {
		if validRoles[r] {
			a.Role = r
			override = true
			break
		}
	}
	if err := s.accounts.Upsert(ctx, a, override); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, role string, limit, offset int) ([]*Account, int, error) {
	if role != "" && !validRoles[role] {
		return nil, 0, apperr.Invalidf("invalid role: %s", role)
	}
	return s.accounts.List(ctx, role, limit, offset)
}

// WalletChallenge is the message an account signs to bind a wallet.
func WalletChallenge(id uuid.UUID) string {
	return "Dhanvantari wallet binding for account " + id.String()
}

// BindWallet binds address to a after checking that address signed the
// account's challenge with personal_sign.
func (s *Service) BindWallet(ctx context.Context, a *Account, address, signature string) (*Account, error) {
	if a == nil {
		return nil, apperr.ErrUnauthorized
	}
	if !common.IsHexAddress(address) {
		return nil, apperr.Invalidf("address must be a 0x-prefixed hex address")
	}
	addr := common.HexToAddress(address)
	if err := chain.VerifyPersonalSignature(addr, WalletChallenge(a.ID), signature); err != nil {
		return nil, apperr.Invalidf("wallet signature rejected: %v", err)
	}
	if err := s.accounts.SetWallet(ctx, a.ID, addr.Hex()); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("account_id", a.ID.String()).Str("wallet", addr.Hex()).Msg("wallet bound")
	return s.accounts.GetByID(ctx, a.ID)
}

func (s *Service) SetRole(ctx context.Context, id uuid.UUID, role string) (*Account, error) {
	if !validRoles[role] {
		return nil, apperr.Invalidf("invalid role: %s", role)
	}
	if err := s.accounts.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}
	return s.accounts.GetByID(ctx, id)
}
