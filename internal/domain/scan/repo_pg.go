package scan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dhanvantari/dhanvantari/internal/platform/db"
)

type scanRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &scanRepoPG{pool: pool}
}

func (r *scanRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const scanCols = `s.id, s.medicine_id, s.unit_id, s.account_id, s.verdict, s.matched, s.confidence,
	s.detected_text, s.medicine_name, s.payload_kind, s.raw_payload, s.location, s.device_info, s.scanned_at`

func scanRow(row pgx.Row, extra ...interface{}) (*Scan, error) {
	var s Scan
	var verdict string
	dest := []interface{}{&s.ID, &s.MedicineID, &s.UnitID, &s.AccountID, &verdict, &s.Result.Matched,
		&s.Result.Confidence, &s.Result.DetectedText, &s.Result.MedicineName, &s.PayloadKind,
		&s.RawPayload, &s.Location, &s.DeviceInfo, &s.ScannedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.Result.Verdict = Verdict(verdict)
	return &s, nil
}

func (r *scanRepoPG) Create(ctx context.Context, s *Scan) error {
	s.ID = uuid.New()
	if s.ScannedAt.IsZero() {
		s.ScannedAt = time.Now()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO scans (id, medicine_id, unit_id, account_id, verdict, matched, confidence,
			detected_text, medicine_name, payload_kind, raw_payload, location, device_info, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.ID, s.MedicineID, s.UnitID, s.AccountID, string(s.Result.Verdict), s.Result.Matched,
		s.Result.Confidence, s.Result.DetectedText, s.Result.MedicineName, s.PayloadKind,
		s.RawPayload, s.Location, s.DeviceInfo, s.ScannedAt)
	return err
}

func (r *scanRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Scan, error) {
	return scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+scanCols+` FROM scans s WHERE s.id = $1`, id))
}

func (r *scanRepoPG) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Scan, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM scans WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+scanCols+`, m.name, m.batch_number, m.manufacturer_name, m.expiry_date
		FROM scans s LEFT JOIN medicines m ON m.id = s.medicine_id
		WHERE s.account_id = $1
		ORDER BY s.scanned_at DESC LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Scan
	for rows.Next() {
		var name, batch, mfr *string
		var expiry *time.Time
		s, err := scanRow(rows, &name, &batch, &mfr, &expiry)
		if err != nil {
			return nil, 0, err
		}
		if name != nil {
			s.Medicine = &MedicineSummary{Name: *name, BatchNumber: *batch, ManufacturerName: *mfr, ExpiryDate: *expiry}
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *scanRepoPG) AccountsForMedicine(ctx context.Context, medicineID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT s.account_id FROM scans s
		LEFT JOIN medicine_units u ON u.id = s.unit_id
		WHERE s.account_id IS NOT NULL AND (s.medicine_id = $1 OR u.medicine_id = $1)`, medicineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
