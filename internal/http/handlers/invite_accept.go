package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/bridgepoint-app/bridgepoint/internal/auth"
	"github.com/bridgepoint-app/bridgepoint/internal/http/viewmodels"
	"github.com/bridgepoint-app/bridgepoint/internal/invite"
	"github.com/bridgepoint-app/bridgepoint/internal/store"
)

// resolveSetupToken validates the raw token from an invite link and returns
// the token row and its account. Expired, used, and unknown tokens all come
// back as not-found so the page cannot distinguish them.
func (h *Handlers) resolveSetupToken(ctx context.Context, raw string) (store.PasswordSetupToken, store.Account, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return store.PasswordSetupToken{}, store.Account{}, store.ErrNotFound
	}

	token, err := h.Store.GetPasswordSetupTokenByHash(ctx, invite.HashSetupToken(raw))
	if err != nil {
		return store.PasswordSetupToken{}, store.Account{}, err
	}
	if token.UsedAt != nil || time.Now().After(token.ExpiresAt) {
		return store.PasswordSetupToken{}, store.Account{}, store.ErrNotFound
	}

	account, err := h.Store.GetAccount(ctx, token.AccountID)
	if err != nil {
		return store.PasswordSetupToken{}, store.Account{}, err
	}
	if !account.IsActive {
		return store.PasswordSetupToken{}, store.Account{}, store.ErrNotFound
	}
	return token, account, nil
}

func (h *Handlers) HandleInviteAcceptGet(c *echo.Context) error {
	raw := c.QueryParam("token")
	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)

	_, account, err := h.resolveSetupToken(c.Request().Context(), raw)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return h.RenderPage(c, http.StatusOK, "invite_accept", viewmodels.InviteAcceptViewData{
				CSRFToken:    csrfToken,
				TokenInvalid: true,
			})
		}
		return err
	}

	return h.RenderPage(c, http.StatusOK, "invite_accept", viewmodels.InviteAcceptViewData{
		CSRFToken: csrfToken,
		Token:     raw,
		Email:     account.Email,
	})
}

func (h *Handlers) HandleInviteAcceptPost(c *echo.Context) error {
	ctx := c.Request().Context()
	raw := c.FormValue("token")
	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)

	token, account, err := h.resolveSetupToken(ctx, raw)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return h.RenderPage(c, http.StatusOK, "invite_accept", viewmodels.InviteAcceptViewData{
				CSRFToken:    csrfToken,
				TokenInvalid: true,
			})
		}
		return err
	}

	data := viewmodels.InviteAcceptViewData{
		CSRFToken: csrfToken,
		Token:     raw,
		Email:     account.Email,
	}

	password := c.FormValue("password")
	confirm := c.FormValue("confirm_password")
	if strings.TrimSpace(password) == "" {
		data.ErrorMessage = "Provide a password."
		return h.RenderPage(c, http.StatusOK, "invite_accept", data)
	}
	if password != confirm {
		data.ErrorMessage = "Passwords do not match."
		return h.RenderPage(c, http.StatusOK, "invite_accept", data)
	}
	if len(password) < 8 {
		data.ErrorMessage = "Use at least 8 characters."
		return h.RenderPage(c, http.StatusOK, "invite_accept", data)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := h.Store.UpdateAccountPasswordHash(ctx, account.ID, hash); err != nil {
		return err
	}
	if err := h.Store.MarkPasswordSetupTokenUsed(ctx, token.ID); err != nil {
		return err
	}

	role, _ := auth.NormalizeLegacyRole(account.Role)
	principal := auth.Principal{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      role,
		Method:    auth.MethodPassword,
	}
	if err := h.signIn(c, principal); err != nil {
		return err
	}

	// Best effort: link the matching program profile right away so the user
	// lands on a claimed dashboard. A conflict is surfaced on the profile
	// page instead of failing the password set.
	result := h.Invites.Claim(ctx, invite.ClaimParams{
		AccountID: account.ID,
		Email:     account.Email,
	})
	if result.Success {
		setFlashToast(c, viewmodels.ToastViewData{
			Category:    "success",
			Title:       "Welcome",
			Description: "Your " + string(result.Role) + " profile is ready.",
		})
	}

	return c.Redirect(http.StatusSeeOther, "/")
}
