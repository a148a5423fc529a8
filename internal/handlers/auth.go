// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/game-meta-api/internal/i18n"
	"codeberg.org/oliverandrich/game-meta-api/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// RegisterRequest is the request body for registration. Username is the
// older name of DisplayName and is used when DisplayName is empty.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
}

func (r RegisterRequest) displayName() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.Username
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Register creates an account and triggers the verification mail.
func (h *Handlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}

	ctx := c.Request().Context()
	userID, err := h.accounts.Register(ctx, auth.RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.displayName(),
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, RegisterResponse{
		Success: true,
		UserID:  userID,
		Message: i18n.T(ctx, "register_success"),
	})
}

// VerifyEmailRequest is the request body for email verification.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// VerifyEmail marks the account of a verification token as verified. The
// token may also be passed as ?token= query parameter.
func (h *Handlers) VerifyEmail(c echo.Context) error {
	var req VerifyEmailRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	if req.Token == "" {
		req.Token = c.QueryParam("token")
	}

	if err := h.accounts.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"verified": true})
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued tokens.
type LoginResponse struct {
	Success      bool   `json:"success"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
}

// Login exchanges credentials for an access and a refresh token.
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}

	session, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, LoginResponse{
		Success:      true,
		Token:        session.AccessToken,
		RefreshToken: session.RefreshToken,
		UserID:       session.UserID,
	})
}

// RefreshRequest is the request body for refresh and logout.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse carries the new access token. RefreshToken is only set
// when refresh tokens are rotated.
type RefreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Refresh issues a new access token for a refresh token.
func (h *Handlers) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}

	refreshed, err := h.accounts.RefreshAccessToken(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, RefreshResponse{
		Token:        refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
	})
}

// Logout revokes a refresh token.
func (h *Handlers) Logout(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}

	if err := h.accounts.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
