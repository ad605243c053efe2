package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dhanvantari/dhanvantari/internal/platform/db"
)

type reportRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &reportRepoPG{pool: pool}
}

func (r *reportRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const reportCols = `r.id, r.reporter_id, r.medicine_id, r.medicine_name, r.batch_number, r.reason,
	r.description, r.location, r.qr_payload, r.status, r.created_at, r.updated_at`

func scanReport(row pgx.Row) (*Report, error) {
	var rp Report
	err := row.Scan(&rp.ID, &rp.ReporterID, &rp.MedicineID, &rp.MedicineName, &rp.BatchNumber, &rp.Reason,
		&rp.Description, &rp.Location, &rp.QRPayload, &rp.Status, &rp.CreatedAt, &rp.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rp, nil
}

func (r *reportRepoPG) Create(ctx context.Context, rp *Report) error {
	rp.ID = uuid.New()
	rp.CreatedAt = time.Now()
	rp.UpdatedAt = rp.CreatedAt
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO reports (id, reporter_id, medicine_id, medicine_name, batch_number, reason,
			description, location, qr_payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rp.ID, rp.ReporterID, rp.MedicineID, rp.MedicineName, rp.BatchNumber, rp.Reason,
		rp.Description, rp.Location, rp.QRPayload, rp.Status, rp.CreatedAt, rp.UpdatedAt)
	return err
}

func (r *reportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	return scanReport(r.conn(ctx).QueryRow(ctx, `SELECT `+reportCols+` FROM reports r WHERE r.id = $1`, id))
}

func (r *reportRepoPG) ListByStatus(ctx context.Context, status string, limit int) ([]*Report, error) {
	return r.list(ctx, `SELECT `+reportCols+` FROM reports r
		WHERE r.status = $1 ORDER BY r.created_at DESC LIMIT $2`, status, limit)
}

func (r *reportRepoPG) ListForManufacturer(ctx context.Context, manufacturerID uuid.UUID, limit int) ([]*Report, error) {
	if manufacturerID == uuid.Nil {
		return r.list(ctx, `SELECT `+reportCols+` FROM reports r ORDER BY r.created_at DESC LIMIT $1`, limit)
	}
	return r.list(ctx, `SELECT `+reportCols+` FROM reports r
		JOIN medicines m ON m.id = r.medicine_id
		WHERE m.manufacturer_id = $1
		ORDER BY r.created_at DESC LIMIT $2`, manufacturerID, limit)
}

func (r *reportRepoPG) list(ctx context.Context, query string, args ...any) ([]*Report, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Report
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rp)
	}
	return items, rows.Err()
}

func (r *reportRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE reports SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}
