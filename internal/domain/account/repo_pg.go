package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dhanvantari/dhanvantari/internal/platform/db"
)

type accountRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &accountRepoPG{pool: pool}
}

func (r *accountRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const accountCols = `id, subject, email, name, role, wallet_address, created_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.Subject, &a.Email, &a.Name, &a.Role, &a.WalletAddress, &a.CreatedAt); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *accountRepoPG) Upsert(ctx context.Context, a *Account, overrideRole bool) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO accounts (id, subject, email, name, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subject) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), accounts.email),
			name  = COALESCE(NULLIF(EXCLUDED.name, ''), accounts.name),
			role  = CASE WHEN $6 THEN EXCLUDED.role ELSE accounts.role END
		RETURNING `+accountCols,
		uuid.New(), a.Subject, a.Email, a.Name, a.Role, overrideRole)
	got, err := scanAccount(row)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	*a = *got
	return nil
}

func (r *accountRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id))
}

func (r *accountRepoPG) GetBySubject(ctx context.Context, subject string) (*Account, error) {
	return scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE subject = $1`, subject))
}

func (r *accountRepoPG) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE accounts SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRepoPG) SetWallet(ctx context.Context, id uuid.UUID, address string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE accounts SET wallet_address = $2 WHERE id = $1`, id, address)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrWalletTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRepoPG) List(ctx context.Context, role string, limit, offset int) ([]*Account, int, error) {
	where := ""
	args := []interface{}{}
	if role != "" {
		where = " WHERE role = $1"
		args = append(args, role)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM accounts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM accounts%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		accountCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
