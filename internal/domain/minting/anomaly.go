package minting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

// Anomaly records a transaction that reached the chain but has no matching
// batch in the database, for operator review.
type Anomaly struct {
	ID              uuid.UUID `db:"id" json:"id"`
	TransactionHash string    `db:"transaction_hash" json:"transaction_hash"`
	ManufacturerID  uuid.UUID `db:"manufacturer_id" json:"manufacturer_id"`
	BatchNumber     string    `db:"batch_number" json:"batch_number"`
	Reason          string    `db:"reason" json:"reason"`
	Resolved        bool      `db:"resolved" json:"resolved"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

var ErrAnomalyNotFound = fmt.Errorf("mint anomaly %w", apperr.ErrNotFound)

type AnomalyRepository interface {
	// Create keeps the first row per transaction hash.
	Create(ctx context.Context, a *Anomaly) error
	GetByHash(ctx context.Context, txHash string) (*Anomaly, error)
	List(ctx context.Context, unresolvedOnly bool, limit int) ([]*Anomaly, error)
	Resolve(ctx context.Context, id uuid.UUID) error
}
