// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"
	"time"

	"codeberg.org/oliverandrich/game-meta-api/internal/models"
	"github.com/google/uuid"
	"github.com/vinovest/sqlx"
)

const refreshTokenColumns = `id, user_id, token_hash, expires_at, revoked, replaced_by, created_at`

// CreateRefreshToken stores the hash of a new refresh token for a user.
func (r *Repository) CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.RefreshToken, error) {
	token := newRefreshToken(userID, tokenHash, expiresAt)
	if err := insertRefreshToken(ctx, r.db, token); err != nil {
		return nil, err
	}
	return token, nil
}

// GetRefreshTokenByHash retrieves a refresh token by its hash, including
// revoked and expired ones.
func (r *Repository) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.db.GetContext(ctx, &token, r.db.Rebind(
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`), tokenHash)
	if err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}

// RevokeRefreshToken marks a single token as revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE refresh_tokens SET revoked = ? WHERE id = ?`), true, id)
	if err != nil {
		return wrapError(err)
	}
	return requireRow(res)
}

// RotateRefreshToken revokes the token with oldID and stores its successor
// in one transaction. It fails with ErrStale if the old token was already
// revoked, so only one of several concurrent rotations succeeds.
func (r *Repository) RotateRefreshToken(ctx context.Context, oldID, tokenHash string, expiresAt time.Time) (*models.RefreshToken, error) {
	var next *models.RefreshToken
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		candidate := newRefreshToken("", tokenHash, expiresAt)

		var userID string
		err := tx.GetContext(ctx, &userID, tx.Rebind(
			`SELECT user_id FROM refresh_tokens WHERE id = ?`), oldID)
		if err != nil {
			return wrapError(err)
		}
		candidate.UserID = userID

		res, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE refresh_tokens SET revoked = ?, replaced_by = ? WHERE id = ? AND revoked = ?`),
			true, candidate.ID, oldID, false)
		if err != nil {
			return wrapError(err)
		}
		if err := requireRow(res); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrStale
			}
			return err
		}

		if err := insertRefreshToken(ctx, tx, candidate); err != nil {
			return err
		}
		next = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// RevokeUserRefreshTokens revokes every active token of a user and returns
// how many were revoked.
func (r *Repository) RevokeUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE refresh_tokens SET revoked = ? WHERE user_id = ? AND revoked = ?`), true, userID, false)
	if err != nil {
		return 0, wrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapError(err)
	}
	return n, nil
}

// DeleteExpiredRefreshTokens removes tokens that expired before now.
func (r *Repository) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`DELETE FROM refresh_tokens WHERE expires_at < ?`), now.UTC())
	if err != nil {
		return 0, wrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapError(err)
	}
	return n, nil
}

func newRefreshToken(userID, tokenHash string, expiresAt time.Time) *models.RefreshToken {
	return &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
}

func insertRefreshToken(ctx context.Context, q querier, token *models.RefreshToken) error {
	_, err := q.ExecContext(ctx, q.Rebind(
		`INSERT INTO refresh_tokens (`+refreshTokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.Revoked, token.ReplacedBy, token.CreatedAt)
	return wrapError(err)
}
