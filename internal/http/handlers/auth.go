package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/bridgepoint-app/bridgepoint/internal/auth"
	"github.com/bridgepoint-app/bridgepoint/internal/auth/providers"
	"github.com/bridgepoint-app/bridgepoint/internal/http/authn"
	"github.com/bridgepoint-app/bridgepoint/internal/http/viewmodels"
	"github.com/bridgepoint-app/bridgepoint/internal/metrics"
	"github.com/bridgepoint-app/bridgepoint/internal/store"
)

func (h *Handlers) HandleLoginGet(c *echo.Context) error {
	if h.Sessions == nil {
		return errors.New("auth sessions not configured")
	}

	if _, ok, err := h.Resolver.LoadPrincipal(c); err != nil {
		return err
	} else if ok {
		return c.Redirect(http.StatusSeeOther, "/")
	}

	count, err := h.Store.CountAccounts(c.Request().Context())
	if err != nil {
		return err
	}

	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	data := viewmodels.LoginViewData{
		CSRFToken:     csrfToken,
		Next:          authn.SanitizeNext(c.QueryParam("next")),
		SetupRequired: count == 0,
		Toast:         popFlashToast(c),
	}
	return h.RenderPage(c, http.StatusOK, "login", data)
}

func (h *Handlers) HandleLoginPost(c *echo.Context) error {
	if h.Sessions == nil {
		return errors.New("auth sessions not configured")
	}

	ctx := c.Request().Context()

	count, err := h.Store.CountAccounts(ctx)
	if err != nil {
		return err
	}

	email := auth.NormalizeEmail(c.FormValue("email"))
	password := c.FormValue("password")
	next := authn.SanitizeNext(c.FormValue("next"))

	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	data := viewmodels.LoginViewData{
		CSRFToken: csrfToken,
		Email:     email,
		Next:      next,
	}

	if count == 0 {
		data.SetupRequired = true
		return h.RenderPage(c, http.StatusOK, "login", data)
	}

	if email == "" || strings.TrimSpace(password) == "" {
		data.ErrorMessage = "Invalid email or password."
		return h.RenderPage(c, http.StatusOK, "login", data)
	}

	passwordProvider := providers.NewPasswordProvider(h.Store)
	principal, err := passwordProvider.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("rejected").Inc()
			data.ErrorMessage = "Invalid email or password."
			return h.RenderPage(c, http.StatusOK, "login", data)
		}
		return err
	}

	if err := h.signIn(c, principal); err != nil {
		return err
	}
	metrics.LoginsTotal.WithLabelValues("ok").Inc()

	if next != "" {
		return c.Redirect(http.StatusSeeOther, next)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// signIn renews the session token and stores the principal snapshot. The
// role claim snapshot is only consulted later when the directory is down.
func (h *Handlers) signIn(c *echo.Context, principal auth.Principal) error {
	ctx := c.Request().Context()

	if err := h.Sessions.RenewToken(ctx); err != nil {
		return err
	}
	h.Sessions.Put(ctx, authn.SessionKeyAccountID, principal.AccountID)
	h.Sessions.Put(ctx, authn.SessionKeyEmail, principal.Email)
	h.Sessions.Put(ctx, authn.SessionKeyRoleClaim, string(principal.Role))

	_ = h.Store.UpdateAccountLoginMeta(ctx, store.UpdateAccountLoginMetaParams{
		ID:          principal.AccountID,
		LastLoginAt: time.Now(),
		LastLoginIP: strings.TrimSpace(c.RealIP()),
	})
	return nil
}

func (h *Handlers) HandleLogoutPost(c *echo.Context) error {
	if h.Sessions == nil {
		return errors.New("auth sessions not configured")
	}

	if err := h.Sessions.Destroy(c.Request().Context()); err != nil {
		return err
	}
	setFlashToast(c, viewmodels.ToastViewData{
		Category: "success",
		Title:    "Signed out",
	})
	return c.Redirect(http.StatusSeeOther, "/login")
}
