package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ProfileKind selects one of the two program profile collections.
type ProfileKind string

const (
	KindParticipant ProfileKind = "participant"
	KindMentor      ProfileKind = "mentor"
)

// ProfileKinds is the claim-matching order: participants are checked before
// mentors.
var ProfileKinds = []ProfileKind{KindParticipant, KindMentor}

func (k ProfileKind) table() string {
	switch k {
	case KindParticipant:
		return "yep_participants"
	case KindMentor:
		return "yep_mentors"
	}
	panic(fmt.Sprintf("store: unknown profile kind %q", string(k)))
}

// Profile is a program profile record (participant or mentor). AccountID is
// nil until the profile is claimed by an identity-directory account.
type Profile struct {
	ID          uuid.UUID
	Kind        ProfileKind
	Email       string
	Name        string
	Phone       string
	AccountID   *int64
	AuthEmail   string
	InviteCode  string
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const profileColumns = `id, email, name, phone, account_id, auth_email, invite_code, last_login_at, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }, kind ProfileKind) (Profile, error) {
	var (
		p          Profile
		accountID  pgtype.Int8
		inviteCode pgtype.Text
		lastLogin  pgtype.Timestamptz
	)
	err := row.Scan(&p.ID, &p.Email, &p.Name, &p.Phone, &accountID, &p.AuthEmail, &inviteCode, &lastLogin, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Profile{}, err
	}
	p.Kind = kind
	if accountID.Valid {
		id := accountID.Int64
		p.AccountID = &id
	}
	if inviteCode.Valid {
		p.InviteCode = inviteCode.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		p.LastLoginAt = &t
	}
	return p, nil
}

func (s *Store) GetProfileByEmail(ctx context.Context, kind ProfileKind, email string) (Profile, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM `+kind.table()+` WHERE email = $1`, email)
	p, err := scanProfile(row, kind)
	return p, notFound(err)
}

func (s *Store) GetProfileByInviteCode(ctx context.Context, kind ProfileKind, code string) (Profile, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM `+kind.table()+` WHERE invite_code = $1`, code)
	p, err := scanProfile(row, kind)
	return p, notFound(err)
}

func (s *Store) GetProfileByAccountID(ctx context.Context, kind ProfileKind, accountID int64) (Profile, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM `+kind.table()+` WHERE account_id = $1`, accountID)
	p, err := scanProfile(row, kind)
	return p, notFound(err)
}

type UpsertInviteProfileParams struct {
	Kind       ProfileKind
	Email      string
	Name       string
	InviteCode string
}

// UpsertInviteProfile creates the profile record for an invited email, or
// refreshes the name and invite code of an existing one. The claim linkage
// (account_id, auth_email) is never touched here.
func (s *Store) UpsertInviteProfile(ctx context.Context, p UpsertInviteProfileParams) (Profile, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO `+p.Kind.table()+` (id, email, name, invite_code)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE `+p.Kind.table()+`.name END,
			invite_code = EXCLUDED.invite_code,
			updated_at = now()
		RETURNING `+profileColumns,
		uuid.New(), p.Email, p.Name, p.InviteCode)
	return scanProfile(row, p.Kind)
}

type ClaimProfileParams struct {
	Kind        ProfileKind
	ID          uuid.UUID
	AccountID   int64
	AuthEmail   string
	LastLoginAt time.Time
}

// ClaimProfile links a profile to an account. The WHERE clause re-checks the
// "unclaimed or claimed by self" invariant at write time so two concurrent
// claims cannot both win.
func (s *Store) ClaimProfile(ctx context.Context, p ClaimProfileParams) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE `+p.Kind.table()+`
		SET account_id = $2, auth_email = $3, last_login_at = $4, updated_at = now()
		WHERE id = $1 AND (account_id IS NULL OR account_id = $2)`,
		p.ID, p.AccountID, p.AuthEmail, p.LastLoginAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetProfileInviteCode(ctx context.Context, kind ProfileKind, id uuid.UUID, code string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE `+kind.table()+` SET invite_code = $2, updated_at = now() WHERE id = $1`, id, code)
	return err
}

// ListProfilesMissingInviteCode returns profiles without a code, for the
// re-runnable backfill.
func (s *Store) ListProfilesMissingInviteCode(ctx context.Context, kind ProfileKind) ([]Profile, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+profileColumns+` FROM `+kind.table()+` WHERE invite_code IS NULL OR invite_code = '' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows, kind)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *Store) ListProfiles(ctx context.Context, kind ProfileKind) ([]Profile, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+profileColumns+` FROM `+kind.table()+` ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows, kind)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

type UpdateProfileSelfParams struct {
	Kind  ProfileKind
	ID    uuid.UUID
	Name  string
	Phone string
}

// UpdateProfileSelf writes the field subset a claimed owner may edit.
func (s *Store) UpdateProfileSelf(ctx context.Context, p UpdateProfileSelfParams) error {
	_, err := s.db.Exec(ctx,
		`UPDATE `+p.Kind.table()+` SET name = $2, phone = $3, updated_at = now() WHERE id = $1`,
		p.ID, p.Name, p.Phone)
	return err
}
