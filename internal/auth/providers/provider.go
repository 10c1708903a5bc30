package providers

import (
	"context"

	"github.com/bridgepoint-app/bridgepoint/internal/auth"
)

type Provider interface {
	Name() string
	Authenticate(ctx context.Context, email, password string) (auth.Principal, error)
}
