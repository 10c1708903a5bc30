// Package authz resolves a caller's effective role through an explicit
// ordered list of strategies. Each precedence rule lives in its own strategy
// so it can be audited and tested in isolation: the live role claim wins,
// the session-embedded claim is only trusted while the directory is
// unreachable, and the legacy admin allow-list backstops accounts with no
// claim at all.
package authz

import (
	"context"
	"log/slog"

	"github.com/bridgepoint-app/bridgepoint/internal/auth"
)

// Subject is the evidence gathered about a caller before role resolution.
type Subject struct {
	AccountID int64
	Email     string

	// LiveRole is the normalized role claim from the directory lookup,
	// zero when the account carries no claim.
	LiveRole auth.Role
	// LiveLookupFailed marks a directory error (not a missing claim).
	LiveLookupFailed bool
	// SessionRole is the claim embedded in the session at login time.
	SessionRole auth.Role
}

// Strategy yields a role for the subject, or reports that it has no opinion.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, sub Subject) (auth.Role, bool, error)
}

// Chain combines strategies by first success. A strategy error is logged and
// skipped; the next strategy decides.
type Chain struct {
	Strategies []Strategy
	Logger     *slog.Logger
}

// Resolve walks the chain in order and returns the first resolved role.
func (c Chain) Resolve(ctx context.Context, sub Subject) (auth.Role, bool) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, s := range c.Strategies {
		role, ok, err := s.Resolve(ctx, sub)
		if err != nil {
			logger.Warn("role strategy failed, trying next",
				"strategy", s.Name(), "email", sub.Email, "error", err)
			continue
		}
		if ok {
			logger.Debug("role resolved", "strategy", s.Name(), "email", sub.Email, "role", string(role))
			return role, true
		}
	}
	logger.Debug("no strategy resolved a role", "email", sub.Email)
	return "", false
}

// LiveClaimStrategy resolves the role claim fetched live from the identity
// directory. The live claim is authoritative so that promotions and
// de-provisioning take effect without forcing logout.
type LiveClaimStrategy struct{}

func (LiveClaimStrategy) Name() string { return "live-claim" }

func (LiveClaimStrategy) Resolve(_ context.Context, sub Subject) (auth.Role, bool, error) {
	if sub.LiveLookupFailed {
		return "", false, nil
	}
	if sub.LiveRole == "" {
		return "", false, nil
	}
	return sub.LiveRole, true, nil
}

// SessionClaimStrategy falls back to the claim embedded in the session, but
// only while the live lookup is failing. A reachable directory that reports
// no claim must not be overridden by a stale session.
type SessionClaimStrategy struct{}

func (SessionClaimStrategy) Name() string { return "session-claim" }

func (SessionClaimStrategy) Resolve(_ context.Context, sub Subject) (auth.Role, bool, error) {
	if !sub.LiveLookupFailed {
		return "", false, nil
	}
	if sub.SessionRole == "" {
		return "", false, nil
	}
	return sub.SessionRole, true, nil
}

// Allowlist is the read surface of the legacy config_admin_emails document.
type Allowlist interface {
	IsAdminAllowlisted(ctx context.Context, email string) (bool, error)
}

// AllowlistStrategy grants admin to emails on the legacy allow-list. It is
// last in the chain, consulted only when no claim resolved.
type AllowlistStrategy struct {
	Allowlist Allowlist
}

func (AllowlistStrategy) Name() string { return "admin-allowlist" }

func (s AllowlistStrategy) Resolve(ctx context.Context, sub Subject) (auth.Role, bool, error) {
	if sub.Email == "" {
		return "", false, nil
	}
	ok, err := s.Allowlist.IsAdminAllowlisted(ctx, sub.Email)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return auth.RoleAdmin, true, nil
}

// NewChain builds the production resolution order.
func NewChain(allowlist Allowlist, logger *slog.Logger) Chain {
	return Chain{
		Strategies: []Strategy{
			LiveClaimStrategy{},
			SessionClaimStrategy{},
			AllowlistStrategy{Allowlist: allowlist},
		},
		Logger: logger,
	}
}
