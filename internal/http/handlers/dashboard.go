package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/bridgepoint-app/bridgepoint/internal/http/authn"
	"github.com/bridgepoint-app/bridgepoint/internal/http/viewmodels"
	"github.com/bridgepoint-app/bridgepoint/internal/store"
)

func (h *Handlers) HandleDashboard(c *echo.Context) error {
	ctx := c.Request().Context()

	data := viewmodels.DashboardViewData{
		Layout: h.LayoutData(c, "Dashboard"),
	}

	principal, _ := authn.PrincipalFromContext(c)
	if principal.IsAdminLevel() {
		count, err := h.Store.CountAccounts(ctx)
		if err != nil {
			return h.RenderError(c, err)
		}
		data.AccountCount = count

		participants, err := h.Store.ListProfiles(ctx, store.KindParticipant)
		if err != nil {
			return h.RenderError(c, err)
		}
		mentors, err := h.Store.ListProfiles(ctx, store.KindMentor)
		if err != nil {
			return h.RenderError(c, err)
		}
		data.ParticipantCount = len(participants)
		data.MentorCount = len(mentors)
	}

	return h.RenderPage(c, http.StatusOK, "dashboard", data)
}
