package handlers

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/bridgepoint-app/bridgepoint/internal/auth"
	"github.com/bridgepoint-app/bridgepoint/internal/http/viewmodels"
)

// pagePermissionKeys are the admin pages that can be granted individually.
// Super-admins see everything without a grant.
var pagePermissionKeys = []string{
	"invites",
	"participants",
	"mentors",
	"surveys",
	"reports",
}

func isKnownPageKey(key string) bool {
	return slices.Contains(pagePermissionKeys, key)
}

func (h *Handlers) HandleAdminPermissions(c *echo.Context) error {
	return h.renderAdminPermissionsPage(c, nil)
}

func (h *Handlers) HandleAdminPermissionGrant(c *echo.Context) error {
	email := auth.NormalizeEmail(c.FormValue("email"))
	pageKey := strings.ToLower(strings.TrimSpace(c.FormValue("page_key")))

	if email == "" {
		return h.renderAdminPermissionsPage(c, &viewmodels.AdminUsersAlert{
			Title:       "Email required",
			Message:     "Provide the admin's email address.",
			Destructive: true,
		})
	}
	if !isKnownPageKey(pageKey) {
		return h.renderAdminPermissionsPage(c, &viewmodels.AdminUsersAlert{
			Title:       "Unknown page",
			Message:     "Pick one of the listed pages.",
			Destructive: true,
		})
	}

	if err := h.Store.GrantPagePermission(c.Request().Context(), email, pageKey); err != nil {
		return h.RenderError(c, err)
	}

	setFlashToast(c, viewmodels.ToastViewData{
		Category:    "success",
		Title:       "Permission granted",
		Description: email + " · " + pageKey,
	})
	return c.Redirect(http.StatusSeeOther, "/admin/permissions")
}

func (h *Handlers) HandleAdminPermissionRevoke(c *echo.Context) error {
	email := auth.NormalizeEmail(c.FormValue("email"))
	pageKey := strings.ToLower(strings.TrimSpace(c.FormValue("page_key")))
	if email == "" || pageKey == "" {
		return h.renderAdminPermissionsPage(c, &viewmodels.AdminUsersAlert{
			Title:       "Invalid grant",
			Message:     "Select a grant to revoke.",
			Destructive: true,
		})
	}

	if err := h.Store.RevokePagePermission(c.Request().Context(), email, pageKey); err != nil {
		return h.RenderError(c, err)
	}

	setFlashToast(c, viewmodels.ToastViewData{
		Category:    "success",
		Title:       "Permission revoked",
		Description: email + " · " + pageKey,
	})
	return c.Redirect(http.StatusSeeOther, "/admin/permissions")
}

func (h *Handlers) renderAdminPermissionsPage(c *echo.Context, alert *viewmodels.AdminUsersAlert) error {
	ctx := c.Request().Context()

	grants, err := h.Store.ListPagePermissions(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}
	allowlisted, err := h.Store.ListAllowlistedAdmins(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}

	items := make([]viewmodels.AdminPermissionItem, 0, len(grants))
	for _, g := range grants {
		items = append(items, viewmodels.AdminPermissionItem{Email: g.Email, PageKey: g.PageKey})
	}

	data := viewmodels.AdminPermissionsViewData{
		Layout:      h.LayoutData(c, "Page permissions"),
		Grants:      items,
		PageKeys:    pagePermissionKeys,
		Allowlisted: allowlisted,
		Alert:       alert,
	}
	return h.RenderPage(c, http.StatusOK, "admin_permissions", data)
}
