// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrMissingInput        = errors.New("missing input")
	ErrConflict            = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// RefreshFailure names why a refresh token was rejected.
type RefreshFailure string

const (
	RefreshNotFound RefreshFailure = "not_found"
	RefreshRevoked  RefreshFailure = "revoked"
	RefreshExpired  RefreshFailure = "expired"
	RefreshReused   RefreshFailure = "reused"
)

// RefreshTokenError is returned for every rejected refresh token. It matches
// ErrInvalidRefreshToken so callers can treat all causes alike, while the
// Reason stays available for logs and metrics.
type RefreshTokenError struct {
	Reason RefreshFailure
}

func (e *RefreshTokenError) Error() string {
	return ErrInvalidRefreshToken.Error() + ": " + string(e.Reason)
}

// Is reports whether target is ErrInvalidRefreshToken.
func (e *RefreshTokenError) Is(target error) bool {
	return target == ErrInvalidRefreshToken
}
