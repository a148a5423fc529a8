// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// RefreshToken stores the hash of an opaque refresh token.
type RefreshToken struct { //nolint:govet // fieldalignment: readability over optimization
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	TokenHash  string    `db:"token_hash" json:"-"` // SHA256 hash
	ExpiresAt  time.Time `db:"expires_at" json:"expires_at"`
	Revoked    bool      `db:"revoked" json:"revoked"`
	ReplacedBy *string   `db:"replaced_by" json:"replaced_by,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// IsExpired reports whether the token expired at or before now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// IsRotated reports whether the token was revoked because it was exchanged
// for a successor.
func (t *RefreshToken) IsRotated() bool {
	return t.ReplacedBy != nil
}

// IsActive reports whether the token may still be used.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}
