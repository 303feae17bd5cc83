package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/solvect/activityfeed/internal/models"
)

// getUserIDFromContext returns the authenticated user's ID, or 0 when the
// request carries no valid token.
func getUserIDFromContext(c echo.Context) uint {
	claims, ok := c.Get("user").(*models.JwtCustomClaims)
	if !ok {
		return 0
	}
	return claims.UserID
}
