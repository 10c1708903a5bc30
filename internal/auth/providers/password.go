package providers

import (
	"context"
	"errors"

	"github.com/bridgepoint-app/bridgepoint/internal/auth"
	"github.com/bridgepoint-app/bridgepoint/internal/store"
)

// Directory is the account lookup surface the password provider needs.
type Directory interface {
	GetAccountByEmail(ctx context.Context, email string) (store.Account, error)
}

type PasswordProvider struct {
	Dir Directory
}

func NewPasswordProvider(dir Directory) *PasswordProvider {
	return &PasswordProvider{Dir: dir}
}

func (p *PasswordProvider) Name() string {
	return auth.MethodPassword
}

func (p *PasswordProvider) Authenticate(ctx context.Context, email, password string) (auth.Principal, error) {
	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		return auth.Principal{}, auth.ErrInvalidCredentials
	}

	account, err := p.Dir.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.Principal{}, auth.ErrInvalidCredentials
		}
		return auth.Principal{}, err
	}
	if !account.IsActive {
		return auth.Principal{}, auth.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, account.PasswordHash)
	if err != nil {
		return auth.Principal{}, err
	}
	if !match {
		return auth.Principal{}, auth.ErrInvalidCredentials
	}

	// The role claim may be absent; the session resolver's strategy chain
	// decides the effective role, including the legacy allow-list fallback.
	role, _ := auth.NormalizeLegacyRole(account.Role)

	return auth.Principal{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      role,
		Method:    auth.MethodPassword,
	}, nil
}
