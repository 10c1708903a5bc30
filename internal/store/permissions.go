package store

import "context"

// IsAdminAllowlisted reports whether the email appears in the legacy admin
// allow-list (config_admin_emails). Presence implies the admin role for
// accounts that carry no role claim.
func (s *Store) IsAdminAllowlisted(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM config_admin_emails WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

func (s *Store) AddAllowlistedAdmin(ctx context.Context, email string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO config_admin_emails (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`, email)
	return err
}

func (s *Store) RemoveAllowlistedAdmin(ctx context.Context, email string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM config_admin_emails WHERE email = $1`, email)
	return err
}

func (s *Store) ListAllowlistedAdmins(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT email FROM config_admin_emails ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// PagePermission is one (admin email, page key) grant.
type PagePermission struct {
	Email   string
	PageKey string
}

// ListPagePermissionKeys returns the page keys granted to one admin email.
func (s *Store) ListPagePermissionKeys(ctx context.Context, email string) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT page_key FROM page_permissions WHERE email = $1 ORDER BY page_key`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *Store) ListPagePermissions(ctx context.Context) ([]PagePermission, error) {
	rows, err := s.db.Query(ctx,
		`SELECT email, page_key FROM page_permissions ORDER BY email, page_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []PagePermission
	for rows.Next() {
		var g PagePermission
		if err := rows.Scan(&g.Email, &g.PageKey); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (s *Store) GrantPagePermission(ctx context.Context, email, pageKey string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO page_permissions (email, page_key) VALUES ($1, $2)
		ON CONFLICT (email, page_key) DO NOTHING`, email, pageKey)
	return err
}

func (s *Store) RevokePagePermission(ctx context.Context, email, pageKey string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM page_permissions WHERE email = $1 AND page_key = $2`, email, pageKey)
	return err
}
