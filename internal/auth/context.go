// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth carries the authenticated player through the request context.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/game-meta-api/internal/models"
)

type userKey struct{}

// WithUser returns a copy of ctx carrying the player resolved from the
// bearer token.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the player stored by WithUser.
func UserFrom(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey{}).(*models.User)
	return user, ok && user != nil
}
