package healthrecord

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dhanvantari/dhanvantari/internal/platform/db"
)

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recordCols = `id, owner_id, record_type, title, description, doctor_id, record_date,
	medications, attachments, is_private, created_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.RecordType, &rec.Title, &rec.Description, &rec.DoctorID,
		&rec.RecordDate, &rec.Medications, &rec.Attachments, &rec.IsPrivate, &rec.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now()
	if rec.Medications == nil {
		rec.Medications = []uuid.UUID{}
	}
	if rec.Attachments == nil {
		rec.Attachments = []string{}
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO health_records (id, owner_id, record_type, title, description, doctor_id, record_date,
			medications, attachments, is_private, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.OwnerID, rec.RecordType, rec.Title, rec.Description, rec.DoctorID, rec.RecordDate,
		rec.Medications, rec.Attachments, rec.IsPrivate, rec.CreatedAt)
	return err
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM health_records WHERE id = $1`, id))
}

func (r *recordRepoPG) ListByOwner(ctx context.Context, ownerID uuid.UUID, recordType string, limit int) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+recordCols+` FROM health_records
		WHERE owner_id = $1 AND ($2 = '' OR record_type = $2)
		ORDER BY created_at DESC LIMIT $3`, ownerID, recordType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (r *recordRepoPG) AddAttachment(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE health_records SET attachments = array_append(attachments, $2) WHERE id = $1`, id, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
