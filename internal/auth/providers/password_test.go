package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/bridgepoint-app/bridgepoint/internal/auth"
	"github.com/bridgepoint-app/bridgepoint/internal/store"
)

type fakeDirectory struct {
	accounts map[string]store.Account
	err      error
}

func (f fakeDirectory) GetAccountByEmail(_ context.Context, email string) (store.Account, error) {
	if f.err != nil {
		return store.Account{}, f.err
	}
	a, ok := f.accounts[email]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return a, nil
}

func TestAuthenticate(t *testing.T) {
	hash, err := auth.HashPassword("s3cret-enough")
	if err != nil {
		t.Fatal(err)
	}
	dir := fakeDirectory{accounts: map[string]store.Account{
		"mentor@example.org": {ID: 7, Email: "mentor@example.org", PasswordHash: hash, Role: "mentor", IsActive: true},
		"legacy@example.org": {ID: 8, Email: "legacy@example.org", PasswordHash: hash, Role: "yep-manager", IsActive: true},
		"gone@example.org":   {ID: 9, Email: "gone@example.org", PasswordHash: hash, Role: "mentor", IsActive: false},
	}}
	p := NewPasswordProvider(dir)

	principal, err := p.Authenticate(context.Background(), " Mentor@Example.org ", "s3cret-enough")
	if err != nil {
		t.Fatal(err)
	}
	if principal.AccountID != 7 || principal.Role != auth.RoleMentor {
		t.Fatalf("principal = %+v", principal)
	}

	// Legacy role values normalize at the read boundary.
	principal, err = p.Authenticate(context.Background(), "legacy@example.org", "s3cret-enough")
	if err != nil {
		t.Fatal(err)
	}
	if principal.Role != auth.RoleAdmin {
		t.Fatalf("legacy yep-manager resolved to %q", principal.Role)
	}

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "mentor@example.org", "nope"},
		{"unknown email", "nobody@example.org", "s3cret-enough"},
		{"inactive account", "gone@example.org", "s3cret-enough"},
		{"empty password", "mentor@example.org", ""},
	}
	for _, tc := range cases {
		if _, err := p.Authenticate(context.Background(), tc.email, tc.password); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Errorf("%s: err = %v, want ErrInvalidCredentials", tc.name, err)
		}
	}
}

func TestAuthenticatePropagatesStoreErrors(t *testing.T) {
	p := NewPasswordProvider(fakeDirectory{err: errors.New("connection refused")})
	if _, err := p.Authenticate(context.Background(), "a@example.org", "pw"); errors.Is(err, auth.ErrInvalidCredentials) || err == nil {
		t.Fatalf("store outage must not look like bad credentials, got %v", err)
	}
}
