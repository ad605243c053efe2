package account

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Account is the local record of an authenticated identity. All ownership
// columns in the schema reference it.
type Account struct {
	ID      uuid.UUID `db:"id" json:"id"`
	Subject string    `db:"subject" json:"subject"`
	Email   string    `db:"email" json:"email"`
	Name    string    `db:"name" json:"name"`
	Role    string    `db:"role" json:"role"`
	// WalletAddress is a checksummed address proven by signature, or empty.
	WalletAddress string    `db:"wallet_address" json:"wallet_address,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

func (a *Account) IsAdmin() bool { return a != nil && a.Role == "admin" }

// Wallet returns the bound wallet address.
func (a *Account) Wallet() (common.Address, bool) {
	if a == nil || !common.IsHexAddress(a.WalletAddress) {
		return common.Address{}, false
	}
	return common.HexToAddress(a.WalletAddress), true
}

// Summary is the public projection used when embedding an account in
// other resources.
type Summary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role string    `json:"role"`
}

func (a *Account) Summary() Summary {
	return Summary{ID: a.ID, Name: a.Name, Role: a.Role}
}
