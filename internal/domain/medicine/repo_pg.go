package medicine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dhanvantari/dhanvantari/internal/platform/db"
)

// =========== Medicine Repository ===========

type medicineRepoPG struct{ pool *pgxpool.Pool }

func NewMedicineRepoPG(pool *pgxpool.Pool) Repository {
	return &medicineRepoPG{pool: pool}
}

func (r *medicineRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const medCols = `id, name, manufacturer_name, manufacturer_id, batch_number, medicine_type,
	manufacturing_date, expiry_date, price, quantity, token_id, transaction_hash,
	contract_address, qr_payload, is_active, is_recalled, verification_status,
	created_at, updated_at`

func scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Name, &m.ManufacturerName, &m.ManufacturerID, &m.BatchNumber,
		&m.MedicineType, &m.ManufacturingDate, &m.ExpiryDate, &m.Price, &m.Quantity,
		&m.TokenID, &m.TransactionHash, &m.ContractAddress, &m.QRPayload,
		&m.IsActive, &m.IsRecalled, &m.VerificationStatus, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *medicineRepoPG) Create(ctx context.Context, m *Medicine) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now()
	m.CreatedAt, m.UpdatedAt = now, now
	if m.VerificationStatus == "" {
		m.VerificationStatus = "verified"
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medicines (id, name, manufacturer_name, manufacturer_id, batch_number, medicine_type,
			manufacturing_date, expiry_date, price, quantity, token_id, transaction_hash,
			contract_address, qr_payload, is_active, is_recalled, verification_status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		m.ID, m.Name, m.ManufacturerName, m.ManufacturerID, m.BatchNumber, m.MedicineType,
		m.ManufacturingDate, m.ExpiryDate, m.Price, m.Quantity, m.TokenID, m.TransactionHash,
		m.ContractAddress, m.QRPayload, m.IsActive, m.IsRecalled, m.VerificationStatus,
		m.CreatedAt, m.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *medicineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return scanMedicine(r.conn(ctx).QueryRow(ctx, `SELECT `+medCols+` FROM medicines WHERE id = $1`, id))
}

func (r *medicineRepoPG) GetByQR(ctx context.Context, payload string) (*Medicine, error) {
	return scanMedicine(r.conn(ctx).QueryRow(ctx, `SELECT `+medCols+` FROM medicines WHERE qr_payload = $1`, payload))
}

func (r *medicineRepoPG) GetByTokenID(ctx context.Context, tokenID string) (*Medicine, error) {
	return scanMedicine(r.conn(ctx).QueryRow(ctx, `SELECT `+medCols+` FROM medicines WHERE token_id = $1`, tokenID))
}

func (r *medicineRepoPG) GetByBatchNumber(ctx context.Context, batch string) (*Medicine, error) {
	return scanMedicine(r.conn(ctx).QueryRow(ctx,
		`SELECT `+medCols+` FROM medicines WHERE batch_number = $1 ORDER BY created_at DESC LIMIT 1`, batch))
}

func (r *medicineRepoPG) ExistsForManufacturer(ctx context.Context, manufacturerID uuid.UUID, batch string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM medicines WHERE manufacturer_id = $1 AND batch_number = $2)`,
		manufacturerID, batch).Scan(&exists)
	return exists, err
}

func (r *medicineRepoPG) ListByManufacturer(ctx context.Context, manufacturerID uuid.UUID, limit, offset int) ([]*Medicine, int, error) {
	where := ""
	args := []interface{}{}
	if manufacturerID != uuid.Nil {
		where = " WHERE manufacturer_id = $1"
		args = append(args, manufacturerID)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medicines`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM medicines%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		medCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *medicineRepoPG) Stats(ctx context.Context, manufacturerID uuid.UUID) (*Stats, error) {
	var s Stats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT batch_number),
			(SELECT COUNT(*) FROM scans s JOIN medicines m ON m.id = s.medicine_id WHERE m.manufacturer_id = $1)
		FROM medicines WHERE manufacturer_id = $1`, manufacturerID).
		Scan(&s.TotalMedicines, &s.TotalBatches, &s.TotalScans)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *medicineRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.exec(ctx, `UPDATE medicines SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

func (r *medicineRepoPG) SetRecalled(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `UPDATE medicines SET is_recalled = TRUE, is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
}

func (r *medicineRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `DELETE FROM medicines WHERE id = $1`, id)
}

func (r *medicineRepoPG) exec(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Unit Repository ===========

type unitRepoPG struct{ pool *pgxpool.Pool }

func NewUnitRepoPG(pool *pgxpool.Pool) UnitRepository {
	return &unitRepoPG{pool: pool}
}

func (r *unitRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const unitCols = `id, medicine_id, serial_number, token_id, qr_payload, is_verified, status, created_at`

func scanUnit(row pgx.Row) (*Unit, error) {
	var u Unit
	err := row.Scan(&u.ID, &u.MedicineID, &u.SerialNumber, &u.TokenID, &u.QRPayload,
		&u.IsVerified, &u.Status, &u.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *unitRepoPG) Create(ctx context.Context, u *Unit) error {
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medicine_units (id, medicine_id, serial_number, token_id, qr_payload, is_verified, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.MedicineID, u.SerialNumber, u.TokenID, u.QRPayload, u.IsVerified, u.Status, u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *unitRepoPG) GetByQR(ctx context.Context, payload string) (*Unit, error) {
	return scanUnit(r.conn(ctx).QueryRow(ctx, `SELECT `+unitCols+` FROM medicine_units WHERE qr_payload = $1`, payload))
}

func (r *unitRepoPG) GetByTokenID(ctx context.Context, tokenID string) (*Unit, error) {
	return scanUnit(r.conn(ctx).QueryRow(ctx, `SELECT `+unitCols+` FROM medicine_units WHERE token_id = $1`, tokenID))
}

func (r *unitRepoPG) ListByMedicine(ctx context.Context, medicineID uuid.UUID, limit, offset int) ([]*Unit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medicine_units WHERE medicine_id = $1`, medicineID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+unitCols+` FROM medicine_units WHERE medicine_id = $1 ORDER BY serial_number LIMIT $2 OFFSET $3`,
		medicineID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}
