// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and verifies signed access and verification tokens
// and generates opaque refresh tokens.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTTL is the lifetime of access tokens when none is given.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultVerifyTTL is the lifetime of verification tokens when none is given.
	DefaultVerifyTTL = 24 * time.Hour
	// MinSecretLength is the minimum signing secret length in bytes.
	MinSecretLength = 32
	// RefreshTokenBytes is the number of random bytes in a refresh token.
	RefreshTokenBytes = 32

	// PurposeVerify marks email verification tokens.
	PurposeVerify = "verify"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrSecretRequired = errors.New("signing secret is required")
	ErrSecretTooShort = fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
)

// Claims is the payload of access and verification tokens. Access tokens
// carry UserID and Email, verification tokens carry Subject and Purpose.
type Claims struct {
	UserID  string `json:"userId,omitempty"`
	Email   string `json:"email,omitempty"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// Config holds the signing secret and clock. It is read once at startup.
type Config struct {
	Secret []byte
	// Now defaults to time.Now.
	Now func() time.Time
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// New creates an Issuer from cfg.
func New(cfg Config) (*Issuer, error) {
	switch {
	case len(cfg.Secret) == 0:
		return nil, ErrSecretRequired
	case len(cfg.Secret) < MinSecretLength:
		return nil, ErrSecretTooShort
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Issuer{
		secret: secret,
		now:    now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(now),
		),
	}, nil
}

// IssueAccess signs an access token for the user. A ttl <= 0 uses
// DefaultAccessTTL. It returns the token and its expiry.
func (i *Issuer) IssueAccess(userID, email string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return i.sign(Claims{UserID: userID, Email: email}, ttl)
}

// IssueVerification signs an email verification token for the user. A
// ttl <= 0 uses DefaultVerifyTTL.
func (i *Issuer) IssueVerification(userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultVerifyTTL
	}
	claims := Claims{Purpose: PurposeVerify}
	claims.Subject = userID
	tok, _, err := i.sign(claims, ttl)
	return tok, err
}

func (i *Issuer) sign(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(ttl)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
// Every failure wraps ErrInvalidToken.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	tok, err := i.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccess verifies an access token. Verification tokens are rejected.
func (i *Issuer) VerifyAccess(tokenString string) (*Claims, error) {
	claims, err := i.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != "" || claims.UserID == "" {
		return nil, fmt.Errorf("%w: not an access token", ErrInvalidToken)
	}
	return claims, nil
}

// NewRefreshToken returns a random hex refresh token and the SHA256 hash
// under which it is stored.
func NewRefreshToken() (plain, hash string, err error) {
	b := make([]byte, RefreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	plain = hex.EncodeToString(b)
	return plain, HashRefreshToken(plain), nil
}

// HashRefreshToken computes the SHA256 hash of a refresh token.
func HashRefreshToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
