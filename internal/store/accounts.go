package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Account is a record in the identity directory. Role holds the account's
// role claim as stored; an empty Role means the account carries no claim and
// the legacy allow-list fallback applies.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
	LastLoginIP  string
}

const accountColumns = `id, email, password_hash, role, is_active, created_at, last_login_at, last_login_ip`

func scanAccount(row interface{ Scan(...any) error }) (Account, error) {
	var (
		a         Account
		lastLogin pgtype.Timestamptz
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.IsActive, &a.CreatedAt, &lastLogin, &a.LastLoginIP)
	if err != nil {
		return Account{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, id int64) (Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	return a, notFound(err)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	a, err := scanAccount(row)
	return a, notFound(err)
}

type CreateAccountParams struct {
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
}

func (s *Store) CreateAccount(ctx context.Context, p CreateAccountParams) (Account, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO accounts (email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+accountColumns,
		p.Email, p.PasswordHash, p.Role, p.IsActive)
	return scanAccount(row)
}

func (s *Store) UpdateAccountRole(ctx context.Context, id int64, role string) error {
	_, err := s.db.Exec(ctx, `UPDATE accounts SET role = $2 WHERE id = $1`, id, role)
	return err
}

func (s *Store) UpdateAccountActive(ctx context.Context, id int64, active bool) error {
	_, err := s.db.Exec(ctx, `UPDATE accounts SET is_active = $2 WHERE id = $1`, id, active)
	return err
}

func (s *Store) UpdateAccountPasswordHash(ctx context.Context, id int64, hash string) error {
	_, err := s.db.Exec(ctx, `UPDATE accounts SET password_hash = $2 WHERE id = $1`, id, hash)
	return err
}

type UpdateAccountLoginMetaParams struct {
	ID          int64
	LastLoginAt time.Time
	LastLoginIP string
}

func (s *Store) UpdateAccountLoginMeta(ctx context.Context, p UpdateAccountLoginMetaParams) error {
	_, err := s.db.Exec(ctx,
		`UPDATE accounts SET last_login_at = $2, last_login_ip = $3 WHERE id = $1`,
		p.ID, p.LastLoginAt, p.LastLoginIP)
	return err
}

func (s *Store) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, err
}

func (s *Store) CountActiveSuperAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM accounts WHERE role = 'super-admin' AND is_active`).Scan(&n)
	return n, err
}

// ListActiveSuperAdminIDsForUpdate locks the active super-admin rows so the
// last-super-admin guard cannot race a concurrent demotion.
func (s *Store) ListActiveSuperAdminIDsForUpdate(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM accounts WHERE role = 'super-admin' AND is_active FOR UPDATE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
