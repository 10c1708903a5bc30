// Package handlers contains HTTP handler logic split by domain.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/bridgepoint-app/bridgepoint/internal/config"
	"github.com/bridgepoint-app/bridgepoint/internal/http/authn"
	"github.com/bridgepoint-app/bridgepoint/internal/http/viewmodels"
	"github.com/bridgepoint-app/bridgepoint/internal/http/views"
	"github.com/bridgepoint-app/bridgepoint/internal/invite"
	"github.com/bridgepoint-app/bridgepoint/internal/store"
)

const (
	// ContextKeyRequestID stores the request id (X-Request-ID) for logging and client error references.
	ContextKeyRequestID = "request_id"

	// InternalErrorCode is a stable error code safe to return to clients.
	InternalErrorCode = "INTERNAL_ERROR"
)

// Store is the persistence surface the HTTP layer needs. *store.Store
// implements it; tests substitute fakes.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	WithTx(tx pgx.Tx) *store.Store

	GetAccount(ctx context.Context, id int64) (store.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (store.Account, error)
	CreateAccount(ctx context.Context, p store.CreateAccountParams) (store.Account, error)
	ListAccounts(ctx context.Context) ([]store.Account, error)
	CountAccounts(ctx context.Context) (int64, error)
	CountActiveSuperAdmins(ctx context.Context) (int64, error)
	UpdateAccountLoginMeta(ctx context.Context, p store.UpdateAccountLoginMetaParams) error
	UpdateAccountPasswordHash(ctx context.Context, id int64, hash string) error

	IsAdminAllowlisted(ctx context.Context, email string) (bool, error)
	ListAllowlistedAdmins(ctx context.Context) ([]string, error)
	ListPagePermissionKeys(ctx context.Context, email string) ([]string, error)
	ListPagePermissions(ctx context.Context) ([]store.PagePermission, error)
	GrantPagePermission(ctx context.Context, email, pageKey string) error
	RevokePagePermission(ctx context.Context, email, pageKey string) error

	GetProfileByAccountID(ctx context.Context, kind store.ProfileKind, accountID int64) (store.Profile, error)
	ListProfiles(ctx context.Context, kind store.ProfileKind) ([]store.Profile, error)
	UpdateProfileSelf(ctx context.Context, p store.UpdateProfileSelfParams) error

	GetPasswordSetupTokenByHash(ctx context.Context, tokenHash string) (store.PasswordSetupToken, error)
	MarkPasswordSetupTokenUsed(ctx context.Context, id uuid.UUID) error
}

// Handlers groups all HTTP handlers and shared dependencies.
type Handlers struct {
	Cfg      config.Config
	Store    Store
	Sessions *scs.SessionManager
	Resolver *authn.Resolver
	Invites  *invite.Service
	Views    *views.Renderer
}

// LayoutData builds the common layout data for page rendering.
func (h *Handlers) LayoutData(c *echo.Context, title string) viewmodels.LayoutData {
	principal, ok := authn.PrincipalFromContext(c)
	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return viewmodels.LayoutData{
		Title:        title,
		CSRFToken:    csrfToken,
		UserEmail:    principal.Email,
		UserRole:     string(principal.Role),
		IsAdminLevel: ok && principal.IsAdminLevel(),
		IsSuperAdmin: ok && principal.IsSuperAdmin(),
		Toast:        popFlashToast(c),
		ActivePath:   c.Request().URL.Path,
	}
}

// RenderPage renders a full page template as the response.
func (h *Handlers) RenderPage(c *echo.Context, status int, page string, data any) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(status)
	if err := h.Views.Render(c.Response(), page, data); err != nil {
		return h.RenderError(c, err)
	}
	return nil
}

// RenderError returns a plain text error response.
func (h *Handlers) RenderError(c *echo.Context, err error) error {
	requestID, _ := c.Get(ContextKeyRequestID).(string)
	path := ""
	if req := c.Request(); req != nil && req.URL != nil {
		path = req.URL.Path
	}
	method := ""
	if req := c.Request(); req != nil {
		method = req.Method
	}
	c.Logger().Error("http error",
		"request_id", requestID,
		"method", method,
		"path", path,
		"ip", c.RealIP(),
		"error", err,
	)

	msg := "Internal server error."
	if requestID != "" {
		msg = fmt.Sprintf("%s Reference: %s.", msg, requestID)
	}
	msg = fmt.Sprintf("%s Code: %s.", msg, InternalErrorCode)
	return c.String(http.StatusInternalServerError, msg)
}

// RenderNotFound returns a 404 response.
func RenderNotFound(c *echo.Context) error {
	return c.String(http.StatusNotFound, "404 page not found")
}

func parseInt64(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
