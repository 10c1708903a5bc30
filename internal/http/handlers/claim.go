package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/bridgepoint-app/bridgepoint/internal/http/authn"
	"github.com/bridgepoint-app/bridgepoint/internal/invite"
)

type claimRequest struct {
	InviteCode string `json:"invite_code"`
}

// HandleClaimAPI links the signed-in account to its program profile. The
// response is always the action shape {success, error} with a 200 status so
// client code can branch on the payload alone.
func (h *Handlers) HandleClaimAPI(c *echo.Context) error {
	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	var req claimRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	result := h.Invites.Claim(c.Request().Context(), invite.ClaimParams{
		AccountID:  principal.AccountID,
		Email:      principal.Email,
		InviteCode: strings.TrimSpace(req.InviteCode),
	})
	return c.JSON(http.StatusOK, result)
}
