// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers implements the JSON API on top of the account manager.
package handlers

import (
	"context"
	"net/http"

	"codeberg.org/oliverandrich/game-meta-api/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// Accounts is the account lifecycle the handlers delegate to.
type Accounts interface {
	Register(ctx context.Context, params auth.RegisterParams) (string, error)
	VerifyEmail(ctx context.Context, verifyToken string) error
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*auth.Refreshed, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	accounts Accounts
}

// New creates a new Handlers instance.
func New(accounts Accounts) *Handlers {
	return &Handlers{accounts: accounts}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
