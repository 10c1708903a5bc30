// Package authn loads the signed-in principal from the session and guards
// routes with role and page-permission gates. Denials stay generic on the
// wire; the reason is only ever logged.
package authn

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/labstack/echo/v5"

	"github.com/bridgepoint-app/bridgepoint/internal/auth"
	"github.com/bridgepoint-app/bridgepoint/internal/authz"
	"github.com/bridgepoint-app/bridgepoint/internal/metrics"
	"github.com/bridgepoint-app/bridgepoint/internal/store"
)

const (
	ContextKeyPrincipal = "auth_principal"

	SessionKeyAccountID = "auth_account_id"
	SessionKeyEmail     = "auth_email"
	SessionKeyRoleClaim = "auth_role_claim"
)

// Directory is the read surface the resolver and the page-permission gate
// need from the store.
type Directory interface {
	GetAccount(ctx context.Context, id int64) (store.Account, error)
	ListPagePermissionKeys(ctx context.Context, email string) ([]string, error)
}

// Resolver turns a session into a Principal. The live directory record is
// authoritative; the session's role-claim snapshot only counts while the
// directory is unreachable.
type Resolver struct {
	Sessions *scs.SessionManager
	Dir      Directory
	Chain    authz.Chain
}

func PrincipalFromContext(c *echo.Context) (auth.Principal, bool) {
	p, ok := c.Get(ContextKeyPrincipal).(auth.Principal)
	return p, ok
}

// LoadPrincipal resolves the caller for one request. A session pointing at a
// deleted or deactivated account is destroyed on the spot.
func (r *Resolver) LoadPrincipal(c *echo.Context) (auth.Principal, bool, error) {
	ctx := c.Request().Context()

	accountID := r.Sessions.GetInt64(ctx, SessionKeyAccountID)
	if accountID <= 0 {
		return auth.Principal{}, false, nil
	}

	sub := authz.Subject{
		AccountID: accountID,
		Email:     r.Sessions.GetString(ctx, SessionKeyEmail),
	}
	if claim, ok := auth.NormalizeLegacyRole(r.Sessions.GetString(ctx, SessionKeyRoleClaim)); ok {
		sub.SessionRole = claim
	}

	account, err := r.Dir.GetAccount(ctx, accountID)
	switch {
	case err == nil:
		if !account.IsActive {
			_ = r.Sessions.Destroy(ctx)
			metrics.SessionsResolvedTotal.WithLabelValues("stale").Inc()
			return auth.Principal{}, false, nil
		}
		sub.Email = account.Email
		if role, ok := auth.NormalizeLegacyRole(account.Role); ok {
			sub.LiveRole = role
		}
	case errors.Is(err, store.ErrNotFound):
		_ = r.Sessions.Destroy(ctx)
		metrics.SessionsResolvedTotal.WithLabelValues("stale").Inc()
		return auth.Principal{}, false, nil
	default:
		// Directory outage. The chain falls back to the session claim so a
		// signed-in user is not bounced by a transient database error.
		c.Logger().Warn("account lookup failed, using session evidence",
			"account_id", accountID, "error", err)
		sub.LiveLookupFailed = true
	}

	role, resolved := r.Chain.Resolve(ctx, sub)
	if !resolved {
		// No claim anywhere and not allow-listed: a plain program user.
		role = auth.RoleParticipant
		metrics.SessionsResolvedTotal.WithLabelValues("default").Inc()
	} else {
		metrics.SessionsResolvedTotal.WithLabelValues("resolved").Inc()
	}

	return auth.Principal{
		AccountID: accountID,
		Email:     sub.Email,
		Role:      role,
		Method:    auth.MethodPassword,
	}, true, nil
}

// RequireAuth loads the principal into the request context and bounces
// anonymous callers to the login page (or 401 for API routes).
func RequireAuth(r *Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			principal, ok, err := r.LoadPrincipal(c)
			if err != nil {
				return err
			}
			if !ok {
				return handleUnauth(c)
			}
			c.Set(ContextKeyPrincipal, principal)
			return next(c)
		}
	}
}

// RequireSuperAdmin gates routes to super-admins.
func RequireSuperAdmin() echo.MiddlewareFunc {
	return requirePrincipal("super-admin", auth.Principal.IsSuperAdmin)
}

// RequireAdminLevel gates routes to admin-level principals. Named
// page-permission checks still apply on top for plain admins.
func RequireAdminLevel() echo.MiddlewareFunc {
	return requirePrincipal("admin-level", auth.Principal.IsAdminLevel)
}

// RequireProgramRole gates routes to participants and mentors.
func RequireProgramRole() echo.MiddlewareFunc {
	return requirePrincipal("program", auth.Principal.IsProgramRole)
}

func requirePrincipal(gate string, allowed func(auth.Principal) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			p, ok := PrincipalFromContext(c)
			if !ok {
				return handleUnauth(c)
			}
			if !allowed(p) {
				return deny(c, gate)
			}
			return next(c)
		}
	}
}

// RequirePagePermission gates an admin page behind a named permission key.
// Super-admins pass unconditionally; plain admins pass only when their email
// has been granted the key; program roles never pass. A permission lookup
// error fails closed.
func RequirePagePermission(dir Directory, pageKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			p, ok := PrincipalFromContext(c)
			if !ok {
				return handleUnauth(c)
			}
			if p.IsSuperAdmin() {
				return next(c)
			}
			if p.Role != auth.RoleAdmin {
				return deny(c, pageKey)
			}
			keys, err := dir.ListPagePermissionKeys(c.Request().Context(), p.Email)
			if err != nil {
				c.Logger().Error("page permission lookup failed",
					"email", p.Email, "page", pageKey, "error", err)
				return deny(c, pageKey)
			}
			if !slices.Contains(keys, pageKey) {
				return deny(c, pageKey)
			}
			return next(c)
		}
	}
}

func deny(c *echo.Context, gate string) error {
	metrics.GateDenialsTotal.WithLabelValues(gate).Inc()
	if isAPIRequest(c) {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
	}
	return echo.NewHTTPError(http.StatusForbidden, http.StatusText(http.StatusForbidden))
}

func isAPIRequest(c *echo.Context) bool {
	return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Request().URL.Path, "/api/")
}

func handleUnauth(c *echo.Context) error {
	if isAPIRequest(c) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	location := "/login"
	if c.Request().Method == http.MethodGet {
		if next := SanitizeNext(c.Request().URL.RequestURI()); next != "" {
			location = "/login?next=" + url.QueryEscape(next)
		}
	}
	return c.Redirect(http.StatusSeeOther, location)
}

// SanitizeNext accepts only same-site paths for the post-login redirect.
func SanitizeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || len(next) > 2048 {
		return ""
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}

	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" || u.Scheme != "" {
		return ""
	}
	if u.Path == "/login" || strings.HasPrefix(u.Path, "/login/") {
		return ""
	}
	if strings.Contains(next, "\\") {
		return ""
	}
	return next
}
