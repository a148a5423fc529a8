// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/game-meta-api/internal/auth"
	"codeberg.org/oliverandrich/game-meta-api/internal/middleware"
	"codeberg.org/oliverandrich/game-meta-api/internal/models"
	authsvc "codeberg.org/oliverandrich/game-meta-api/internal/services/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type stubAuthenticator struct {
	user *models.User
	err  error
	got  string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, accessToken string) (*models.User, error) {
	s.got = accessToken
	return s.user, s.err
}

func newProtectedEcho(a middleware.Authenticator) *echo.Echo {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		user, ok := auth.UserFrom(c.Request().Context())
		if !ok {
			return c.NoContent(http.StatusTeapot)
		}
		return c.String(http.StatusOK, user.ID)
	}, middleware.RequireBearer(a))
	return e
}

func serve(e *echo.Echo, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireBearer_Valid(t *testing.T) {
	stub := &stubAuthenticator{user: &models.User{ID: "u1"}}

	rec := serve(newProtectedEcho(stub), "Bearer tok123")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
	assert.Equal(t, "tok123", stub.got)
}

func TestRequireBearer_CaseInsensitiveScheme(t *testing.T) {
	stub := &stubAuthenticator{user: &models.User{ID: "u1"}}

	rec := serve(newProtectedEcho(stub), "bearer tok123")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireBearer_Missing(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"empty token", "Bearer  "},
		{"no separator", "Bearertok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newProtectedEcho(&stubAuthenticator{}), tt.header)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"missing bearer token"}`, rec.Body.String())
		})
	}
}

func TestRequireBearer_InvalidToken(t *testing.T) {
	stub := &stubAuthenticator{err: authsvc.ErrInvalidToken}

	rec := serve(newProtectedEcho(stub), "Bearer expired")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"invalid or expired token"}`, rec.Body.String())
}

func TestRequireBearer_StoreFailure(t *testing.T) {
	stub := &stubAuthenticator{err: errors.New("db down")}

	rec := serve(newProtectedEcho(stub), "Bearer tok")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal"}`, rec.Body.String())
}
