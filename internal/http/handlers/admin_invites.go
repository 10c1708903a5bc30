package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/bridgepoint-app/bridgepoint/internal/auth"
	"github.com/bridgepoint-app/bridgepoint/internal/http/viewmodels"
	"github.com/bridgepoint-app/bridgepoint/internal/invite"
)

type adminInvitesPageOptions struct {
	form    viewmodels.AdminInviteForm
	results []viewmodels.AdminInviteResultItem
	alert   *viewmodels.AdminUsersAlert
}

func (h *Handlers) HandleAdminInvites(c *echo.Context) error {
	return h.renderAdminInvitesPage(c, adminInvitesPageOptions{})
}

func (h *Handlers) HandleAdminInviteCreate(c *echo.Context) error {
	form := viewmodels.AdminInviteForm{
		Email: auth.NormalizeEmail(c.FormValue("email")),
		Name:  strings.TrimSpace(c.FormValue("name")),
		Role:  strings.ToLower(strings.TrimSpace(c.FormValue("role"))),
	}

	role, ok := parseInviteRole(form.Role)
	if !ok {
		return h.renderAdminInvitesPage(c, adminInvitesPageOptions{
			form: form,
			alert: &viewmodels.AdminUsersAlert{
				Title:       "Invalid role",
				Message:     "Invites can only be sent for participants and mentors.",
				Destructive: true,
			},
		})
	}
	if form.Email == "" {
		return h.renderAdminInvitesPage(c, adminInvitesPageOptions{
			form: form,
			alert: &viewmodels.AdminUsersAlert{
				Title:       "Email required",
				Message:     "Provide the invitee's email address.",
				Destructive: true,
			},
		})
	}

	_, err := h.Invites.Issue(c.Request().Context(), invite.IssueParams{
		Email: form.Email,
		Name:  form.Name,
		Role:  role,
	})
	if err != nil {
		c.Logger().Error("invite failed", "email", form.Email, "error", err)
		return h.renderAdminInvitesPage(c, adminInvitesPageOptions{
			form: form,
			alert: &viewmodels.AdminUsersAlert{
				Title:       "Invite failed",
				Message:     "The invitation could not be sent. Try again.",
				Destructive: true,
			},
		})
	}

	setFlashToast(c, viewmodels.ToastViewData{
		Category:    "success",
		Title:       "Invite sent",
		Description: form.Email,
	})
	return c.Redirect(http.StatusSeeOther, "/admin/invites")
}

func (h *Handlers) HandleAdminInviteBulk(c *echo.Context) error {
	roleRaw := strings.ToLower(strings.TrimSpace(c.FormValue("role")))
	role, ok := parseInviteRole(roleRaw)
	if !ok {
		return h.renderAdminInvitesPage(c, adminInvitesPageOptions{
			alert: &viewmodels.AdminUsersAlert{
				Title:       "Invalid role",
				Message:     "Invites can only be sent for participants and mentors.",
				Destructive: true,
			},
		})
	}

	items := parseBulkRecipients(c.FormValue("recipients"), role)
	if len(items) == 0 {
		return h.renderAdminInvitesPage(c, adminInvitesPageOptions{
			alert: &viewmodels.AdminUsersAlert{
				Title:       "No recipients",
				Message:     "Provide at least one email address.",
				Destructive: true,
			},
		})
	}

	results := h.Invites.IssueBulk(c.Request().Context(), items)

	view := make([]viewmodels.AdminInviteResultItem, 0, len(results))
	for _, r := range results {
		view = append(view, viewmodels.AdminInviteResultItem{
			Email:   r.Email,
			Success: r.Success,
			Error:   r.Error,
		})
	}
	return h.renderAdminInvitesPage(c, adminInvitesPageOptions{results: view})
}

// HandleAdminInviteBackfill assigns codes to profiles that predate code
// issuance. Re-running is harmless.
func (h *Handlers) HandleAdminInviteBackfill(c *echo.Context) error {
	summary, err := h.Invites.BackfillCodes(c.Request().Context())
	if err != nil {
		c.Logger().Error("invite code backfill failed", "error", err)
		return h.renderAdminInvitesPage(c, adminInvitesPageOptions{
			alert: &viewmodels.AdminUsersAlert{
				Title:       "Backfill failed",
				Message:     "Invite codes could not be backfilled. Try again.",
				Destructive: true,
			},
		})
	}

	setFlashToast(c, viewmodels.ToastViewData{
		Category:    "success",
		Title:       "Backfill complete",
		Description: fmt.Sprintf("%d profiles updated, %d failed", summary.Updated, summary.Failed),
	})
	return c.Redirect(http.StatusSeeOther, "/admin/invites")
}

func parseInviteRole(raw string) (auth.Role, bool) {
	role, ok := auth.ParseRole(raw)
	if !ok || (role != auth.RoleParticipant && role != auth.RoleMentor) {
		return "", false
	}
	return role, true
}

// parseBulkRecipients reads one "email,name" pair per line; the name part is
// optional. Blank lines and lines without an email are dropped.
func parseBulkRecipients(raw string, role auth.Role) []invite.IssueParams {
	var items []invite.IssueParams
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		email, name, _ := strings.Cut(line, ",")
		email = auth.NormalizeEmail(email)
		if email == "" {
			continue
		}
		items = append(items, invite.IssueParams{
			Email: email,
			Name:  strings.TrimSpace(name),
			Role:  role,
		})
	}
	return items
}

func (h *Handlers) renderAdminInvitesPage(c *echo.Context, opts adminInvitesPageOptions) error {
	if opts.form.Role == "" {
		opts.form.Role = string(auth.RoleParticipant)
	}
	data := viewmodels.AdminInvitesViewData{
		Layout:  h.LayoutData(c, "Invitations"),
		Form:    opts.form,
		Results: opts.results,
		Alert:   opts.alert,
	}
	return h.RenderPage(c, http.StatusOK, "admin_invites", data)
}
