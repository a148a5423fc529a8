// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"time"

	"codeberg.org/oliverandrich/game-meta-api/internal/auth"
	"github.com/labstack/echo/v4"
)

// ProfileResponse is the public view of the current player.
type ProfileResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Profile returns the authenticated player. Requires the bearer middleware.
func (h *Handlers) Profile(c echo.Context) error {
	user, ok := auth.UserFrom(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing bearer token"})
	}

	return c.JSON(http.StatusOK, ProfileResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
	})
}
