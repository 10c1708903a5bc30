package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// PasswordSetupToken backs the invite email's password-set link. Only the
// SHA-256 of the raw token is stored.
type PasswordSetupToken struct {
	ID        uuid.UUID
	AccountID int64
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

type CreatePasswordSetupTokenParams struct {
	AccountID int64
	TokenHash string
	ExpiresAt time.Time
}

func (s *Store) CreatePasswordSetupToken(ctx context.Context, p CreatePasswordSetupTokenParams) (PasswordSetupToken, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO password_setup_tokens (id, account_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, account_id, token_hash, expires_at, used_at, created_at`,
		uuid.New(), p.AccountID, p.TokenHash, p.ExpiresAt)
	return scanPasswordSetupToken(row)
}

func (s *Store) GetPasswordSetupTokenByHash(ctx context.Context, tokenHash string) (PasswordSetupToken, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, account_id, token_hash, expires_at, used_at, created_at
		FROM password_setup_tokens WHERE token_hash = $1`, tokenHash)
	t, err := scanPasswordSetupToken(row)
	return t, notFound(err)
}

func (s *Store) MarkPasswordSetupTokenUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE password_setup_tokens SET used_at = now() WHERE id = $1 AND used_at IS NULL`, id)
	return err
}

func scanPasswordSetupToken(row interface{ Scan(...any) error }) (PasswordSetupToken, error) {
	var (
		t      PasswordSetupToken
		usedAt pgtype.Timestamptz
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.TokenHash, &t.ExpiresAt, &usedAt, &t.CreatedAt)
	if err != nil {
		return PasswordSetupToken{}, err
	}
	if usedAt.Valid {
		u := usedAt.Time
		t.UsedAt = &u
	}
	return t, nil
}
