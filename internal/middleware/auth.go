// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware contains echo middleware shared by the API routes.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/game-meta-api/internal/auth"
	"codeberg.org/oliverandrich/game-meta-api/internal/models"
	authsvc "codeberg.org/oliverandrich/game-meta-api/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// Authenticator resolves an access token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// RequireBearer rejects requests without a valid "Authorization: Bearer"
// access token and stores the user in the request context.
func RequireBearer(authenticator Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accessToken, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}

			ctx := c.Request().Context()
			user, err := authenticator.Authenticate(ctx, accessToken)
			if err != nil {
				if errors.Is(err, authsvc.ErrInvalidToken) {
					return c.JSON(http.StatusForbidden, map[string]string{"error": authsvc.ErrInvalidToken.Error()})
				}
				slog.ErrorContext(ctx, "authenticate_failed", "error", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal"})
			}

			c.SetRequest(c.Request().WithContext(auth.WithUser(ctx, user)))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
