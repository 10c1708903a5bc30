package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/bridgepoint-app/bridgepoint/internal/auth"
	"github.com/bridgepoint-app/bridgepoint/internal/http/authn"
	"github.com/bridgepoint-app/bridgepoint/internal/http/viewmodels"
	"github.com/bridgepoint-app/bridgepoint/internal/store"
)

type adminUsersPageOptions struct {
	openAdd bool
	addForm viewmodels.AdminUsersForm
	alert   *viewmodels.AdminUsersAlert
}

func (h *Handlers) HandleAdminUsers(c *echo.Context) error {
	open := strings.ToLower(strings.TrimSpace(c.QueryParam("open")))
	return h.renderAdminUsersPage(c, adminUsersPageOptions{openAdd: open == "add"})
}

func (h *Handlers) HandleAdminUsersCreate(c *echo.Context) error {
	email := auth.NormalizeEmail(c.FormValue("email"))
	roleRaw := c.FormValue("role")
	password := c.FormValue("password")
	confirm := c.FormValue("confirm_password")

	form := viewmodels.AdminUsersForm{Email: email, Role: strings.ToLower(strings.TrimSpace(roleRaw))}

	if form.Email == "" {
		return h.renderAdminUsersPage(c, adminUsersPageOptions{
			openAdd: true,
			addForm: form,
			alert: &viewmodels.AdminUsersAlert{
				Title:       "Email required",
				Message:     "Provide an email address for the account.",
				Destructive: true,
			},
		})
	}

	role, ok := auth.ParseRole(roleRaw)
	if !ok {
		return h.renderAdminUsersPage(c, adminUsersPageOptions{
			openAdd: true,
			addForm: form,
			alert: &viewmodels.AdminUsersAlert{
				Title:       "Invalid role",
				Message:     "Role must be participant, mentor, admin, or super-admin.",
				Destructive: true,
			},
		})
	}

	if msg := validatePassword(password, confirm); msg != "" {
		return h.renderAdminUsersPage(c, adminUsersPageOptions{
			openAdd: true,
			addForm: form,
			alert: &viewmodels.AdminUsersAlert{
				Title:       "Invalid password",
				Message:     msg,
				Destructive: true,
			},
		})
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return h.RenderError(c, err)
	}

	_, err = h.Store.CreateAccount(c.Request().Context(), store.CreateAccountParams{
		Email:        form.Email,
		PasswordHash: hash,
		Role:         string(role),
		IsActive:     true,
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return h.renderAdminUsersPage(c, adminUsersPageOptions{
				openAdd: true,
				addForm: form,
				alert: &viewmodels.AdminUsersAlert{
					Title:       "Account already exists",
					Message:     "An account with that email address already exists.",
					Destructive: true,
				},
			})
		}
		return h.RenderError(c, err)
	}

	setFlashToast(c, viewmodels.ToastViewData{
		Category:    "success",
		Title:       "Account created",
		Description: form.Email,
	})
	return c.Redirect(http.StatusSeeOther, "/admin/users")
}

// HandleAdminUserRole changes an account's role claim. Self role changes are
// rejected, and the last active super-admin cannot be demoted; the guard runs
// inside a transaction with the super-admin rows locked.
func (h *Handlers) HandleAdminUserRole(c *echo.Context) error {
	accountID, ok := parseInt64(c.Param("id"))
	if !ok || accountID <= 0 {
		return RenderNotFound(c)
	}

	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden, http.StatusText(http.StatusForbidden))
	}

	role, ok := auth.ParseRole(c.FormValue("role"))
	if !ok {
		return h.renderAdminUsersPage(c, adminUsersPageOptions{alert: &viewmodels.AdminUsersAlert{
			Title:       "Invalid role",
			Message:     "Role must be participant, mentor, admin, or super-admin.",
			Destructive: true,
		}})
	}

	if principal.AccountID == accountID {
		return h.renderAdminUsersPage(c, adminUsersPageOptions{alert: &viewmodels.AdminUsersAlert{
			Title:       "Role change not allowed",
			Message:     "You cannot change your own role.",
			Destructive: true,
		}})
	}

	ctx := c.Request().Context()

	tx, err := h.Store.Begin(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}
	defer tx.Rollback(ctx)

	stx := h.Store.WithTx(tx)

	account, err := stx.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RenderNotFound(c)
		}
		return h.RenderError(c, err)
	}

	superAdminIDs, err := stx.ListActiveSuperAdminIDsForUpdate(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}

	currentRole, _ := auth.NormalizeLegacyRole(account.Role)
	if account.IsActive && currentRole == auth.RoleSuperAdmin && len(superAdminIDs) == 1 && role != auth.RoleSuperAdmin {
		return h.renderAdminUsersPage(c, adminUsersPageOptions{alert: &viewmodels.AdminUsersAlert{
			Title:       "Role change not allowed",
			Message:     "You cannot demote the last active super-admin.",
			Destructive: true,
		}})
	}

	if err := stx.UpdateAccountRole(ctx, accountID, string(role)); err != nil {
		return h.RenderError(c, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return h.RenderError(c, err)
	}

	setFlashToast(c, viewmodels.ToastViewData{
		Category:    "success",
		Title:       "Role updated",
		Description: strings.TrimSpace(account.Email),
	})
	return c.Redirect(http.StatusSeeOther, "/admin/users")
}

// HandleAdminUserActive toggles an account. The same guards apply as for role
// changes: never yourself, never the last active super-admin.
func (h *Handlers) HandleAdminUserActive(c *echo.Context) error {
	accountID, ok := parseInt64(c.Param("id"))
	if !ok || accountID <= 0 {
		return RenderNotFound(c)
	}

	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden, http.StatusText(http.StatusForbidden))
	}

	if principal.AccountID == accountID {
		return h.renderAdminUsersPage(c, adminUsersPageOptions{alert: &viewmodels.AdminUsersAlert{
			Title:       "Change not allowed",
			Message:     "You cannot deactivate your own account.",
			Destructive: true,
		}})
	}

	active := strings.EqualFold(strings.TrimSpace(c.FormValue("active")), "true")

	ctx := c.Request().Context()

	tx, err := h.Store.Begin(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}
	defer tx.Rollback(ctx)

	stx := h.Store.WithTx(tx)

	account, err := stx.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RenderNotFound(c)
		}
		return h.RenderError(c, err)
	}

	if !active {
		superAdminIDs, err := stx.ListActiveSuperAdminIDsForUpdate(ctx)
		if err != nil {
			return h.RenderError(c, err)
		}
		currentRole, _ := auth.NormalizeLegacyRole(account.Role)
		if account.IsActive && currentRole == auth.RoleSuperAdmin && len(superAdminIDs) == 1 {
			return h.renderAdminUsersPage(c, adminUsersPageOptions{alert: &viewmodels.AdminUsersAlert{
				Title:       "Change not allowed",
				Message:     "You cannot deactivate the last active super-admin.",
				Destructive: true,
			}})
		}
	}

	if err := stx.UpdateAccountActive(ctx, accountID, active); err != nil {
		return h.RenderError(c, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return h.RenderError(c, err)
	}

	title := "Account deactivated"
	if active {
		title = "Account activated"
	}
	setFlashToast(c, viewmodels.ToastViewData{
		Category:    "success",
		Title:       title,
		Description: strings.TrimSpace(account.Email),
	})
	return c.Redirect(http.StatusSeeOther, "/admin/users")
}

func (h *Handlers) renderAdminUsersPage(c *echo.Context, opts adminUsersPageOptions) error {
	ctx := c.Request().Context()

	principal, _ := authn.PrincipalFromContext(c)

	superAdminCount, err := h.Store.CountActiveSuperAdmins(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}

	rows, err := h.Store.ListAccounts(ctx)
	if err != nil {
		return h.RenderError(c, err)
	}

	users := make([]viewmodels.AdminUsersUserItem, 0, len(rows))
	for _, row := range rows {
		role, _ := auth.NormalizeLegacyRole(row.Role)
		isSelf := principal.AccountID == row.ID
		isLastSuperAdmin := row.IsActive && role == auth.RoleSuperAdmin && superAdminCount == 1

		users = append(users, viewmodels.AdminUsersUserItem{
			ID:               row.ID,
			Email:            strings.TrimSpace(row.Email),
			Role:             string(role),
			IsActive:         row.IsActive,
			IsSelf:           isSelf,
			IsLastSuperAdmin: isLastSuperAdmin,
			CanEditRole:      !isSelf && !isLastSuperAdmin,
			CanDeactivate:    !isSelf && !isLastSuperAdmin,
		})
	}

	if opts.addForm.Role == "" {
		opts.addForm.Role = string(auth.RoleParticipant)
	}

	data := viewmodels.AdminUsersViewData{
		Layout:   h.LayoutData(c, "Accounts"),
		Users:    users,
		HasUsers: len(users) > 0,
		OpenAdd:  opts.openAdd,
		Form:     opts.addForm,
		Alert:    opts.alert,
	}
	return h.RenderPage(c, http.StatusOK, "admin_users", data)
}

func validatePassword(password, confirm string) string {
	if strings.TrimSpace(password) == "" {
		return "Provide a password."
	}
	if password != confirm {
		return "Confirm the password to continue."
	}
	if len(password) < 8 {
		return "Use at least 8 characters."
	}
	return ""
}
