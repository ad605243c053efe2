package minting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dhanvantari/dhanvantari/internal/platform/db"
)

type anomalyRepoPG struct{ pool *pgxpool.Pool }

func NewAnomalyRepoPG(pool *pgxpool.Pool) AnomalyRepository {
	return &anomalyRepoPG{pool: pool}
}

func (r *anomalyRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const anomalyCols = `id, transaction_hash, manufacturer_id, batch_number, reason, resolved, created_at`

func scanAnomaly(row pgx.Row) (*Anomaly, error) {
	var a Anomaly
	err := row.Scan(&a.ID, &a.TransactionHash, &a.ManufacturerID, &a.BatchNumber, &a.Reason, &a.Resolved, &a.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrAnomalyNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *anomalyRepoPG) Create(ctx context.Context, a *Anomaly) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO mint_anomalies (id, transaction_hash, manufacturer_id, batch_number, reason, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		ON CONFLICT (transaction_hash) DO NOTHING`,
		a.ID, a.TransactionHash, a.ManufacturerID, a.BatchNumber, a.Reason, a.CreatedAt)
	return err
}

func (r *anomalyRepoPG) GetByHash(ctx context.Context, txHash string) (*Anomaly, error) {
	return scanAnomaly(r.conn(ctx).QueryRow(ctx,
		`SELECT `+anomalyCols+` FROM mint_anomalies WHERE transaction_hash = $1`, txHash))
}

func (r *anomalyRepoPG) List(ctx context.Context, unresolvedOnly bool, limit int) ([]*Anomaly, error) {
	query := `SELECT ` + anomalyCols + ` FROM mint_anomalies`
	if unresolvedOnly {
		query += ` WHERE NOT resolved`
	}
	query += ` ORDER BY created_at DESC LIMIT $1`

	rows, err := r.conn(ctx).Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Anomaly
	for rows.Next() {
		a, err := scanAnomaly(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *anomalyRepoPG) Resolve(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE mint_anomalies SET resolved = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAnomalyNotFound
	}
	return nil
}
