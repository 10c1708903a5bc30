package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/bridgepoint-app/bridgepoint/internal/http/authn"
	"github.com/bridgepoint-app/bridgepoint/internal/http/viewmodels"
	"github.com/bridgepoint-app/bridgepoint/internal/invite"
	"github.com/bridgepoint-app/bridgepoint/internal/store"
)

// lookupOwnProfile finds the profile claimed by the account, participants
// first.
func (h *Handlers) lookupOwnProfile(c *echo.Context, accountID int64) (store.Profile, bool, error) {
	for _, kind := range store.ProfileKinds {
		p, err := h.Store.GetProfileByAccountID(c.Request().Context(), kind, accountID)
		if err == nil {
			return p, true, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return store.Profile{}, false, err
		}
	}
	return store.Profile{}, false, nil
}

func (h *Handlers) HandleProfileGet(c *echo.Context) error {
	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	data := viewmodels.ProfileViewData{
		Layout: h.LayoutData(c, "Profile"),
		Email:  principal.Email,
	}

	profile, found, err := h.lookupOwnProfile(c, principal.AccountID)
	if err != nil {
		return h.RenderError(c, err)
	}
	if !found {
		data.Unclaimed = true
		return h.RenderPage(c, http.StatusOK, "profile", data)
	}

	data.Role = string(profile.Kind)
	data.Name = profile.Name
	data.Phone = profile.Phone
	return h.RenderPage(c, http.StatusOK, "profile", data)
}

// HandleProfilePost updates the owner-editable subset of the claimed profile.
func (h *Handlers) HandleProfilePost(c *echo.Context) error {
	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	profile, found, err := h.lookupOwnProfile(c, principal.AccountID)
	if err != nil {
		return h.RenderError(c, err)
	}
	if !found {
		setFlashToast(c, viewmodels.ToastViewData{
			Category:    "error",
			Title:       "No profile",
			Description: "Claim your profile before editing it.",
		})
		return c.Redirect(http.StatusSeeOther, "/profile")
	}

	err = h.Store.UpdateProfileSelf(c.Request().Context(), store.UpdateProfileSelfParams{
		Kind:  profile.Kind,
		ID:    profile.ID,
		Name:  strings.TrimSpace(c.FormValue("name")),
		Phone: strings.TrimSpace(c.FormValue("phone")),
	})
	if err != nil {
		return h.RenderError(c, err)
	}

	setFlashToast(c, viewmodels.ToastViewData{
		Category: "success",
		Title:    "Profile updated",
	})
	return c.Redirect(http.StatusSeeOther, "/profile")
}

// HandleProfileClaimPost is the form counterpart of the claim API.
func (h *Handlers) HandleProfileClaimPost(c *echo.Context) error {
	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	result := h.Invites.Claim(c.Request().Context(), invite.ClaimParams{
		AccountID:  principal.AccountID,
		Email:      principal.Email,
		InviteCode: strings.TrimSpace(c.FormValue("invite_code")),
	})
	if !result.Success {
		setFlashToast(c, viewmodels.ToastViewData{
			Category:    "error",
			Title:       "Claim failed",
			Description: result.Error,
		})
		return c.Redirect(http.StatusSeeOther, "/profile")
	}

	setFlashToast(c, viewmodels.ToastViewData{
		Category:    "success",
		Title:       "Profile claimed",
		Description: "You are set up as a " + string(result.Role) + ".",
	})
	return c.Redirect(http.StatusSeeOther, "/profile")
}
