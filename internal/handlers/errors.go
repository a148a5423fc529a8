// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/game-meta-api/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError maps account errors to status codes. Unknown errors are
// logged and answered with a generic 500.
func respondError(c echo.Context, err error) error {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request_failed",
			"method", c.Request().Method, "path", c.Path(), "error", err)
	}
	return c.JSON(status, ErrorResponse{Error: msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrValidation), errors.Is(err, auth.ErrMissingInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, auth.ErrInvalidCredentials.Error()
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, auth.ErrInvalidRefreshToken.Error()
	case errors.Is(err, auth.ErrEmailNotVerified):
		return http.StatusForbidden, auth.ErrEmailNotVerified.Error()
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusForbidden, auth.ErrInvalidToken.Error()
	case errors.Is(err, auth.ErrConflict):
		return http.StatusConflict, auth.ErrConflict.Error()
	}
	return http.StatusInternalServerError, "internal"
}

func badRequest(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
}

// HTTPErrorHandler renders echo errors (unknown routes, body limits) with
// the same body shape as the API errors.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := "internal"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(he.Code)
		}
	} else {
		slog.ErrorContext(c.Request().Context(), "request_failed", "path", c.Path(), "error", err)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, ErrorResponse{Error: msg})
	}
	if writeErr != nil {
		slog.ErrorContext(c.Request().Context(), "error_response_failed", "error", writeErr)
	}
}
