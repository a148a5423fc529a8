// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/game-meta-api/internal/models"
	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, display_name, email_verified, created_at`

// CreateUser inserts an unverified user. ID and CreatedAt are assigned here.
func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string, displayName *string) (*models.User, error) {
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		user.ID, user.Email, user.PasswordHash, user.DisplayName, user.EmailVerified, user.CreatedAt)
	if err != nil {
		return nil, wrapError(err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(
		`SELECT `+userColumns+` FROM users WHERE email = ?`), email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// MarkEmailVerified sets the verified flag. Verifying twice is not an error.
func (r *Repository) MarkEmailVerified(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE users SET email_verified = ? WHERE id = ?`), true, id)
	if err != nil {
		return wrapError(err)
	}
	return requireRow(res)
}
