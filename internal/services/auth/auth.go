// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth manages the account and session lifecycle: registration,
// email verification, login and refresh token handling.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"codeberg.org/oliverandrich/game-meta-api/internal/models"
	"codeberg.org/oliverandrich/game-meta-api/internal/repository"
	"codeberg.org/oliverandrich/game-meta-api/internal/services/token"
)

// Store is the persistence the Manager needs. *repository.Repository
// implements it.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string, displayName *string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	MarkEmailVerified(ctx context.Context, id string) error
	CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.RefreshToken, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string) error
	RotateRefreshToken(ctx context.Context, oldID, tokenHash string, expiresAt time.Time) (*models.RefreshToken, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string) (int64, error)
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) bool
}

// Mailer delivers a plain text mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Recorder counts operation outcomes.
type Recorder interface {
	Observe(operation, result string)
}

// Config controls token lifetimes and mail behaviour.
type Config struct { //nolint:govet // fieldalignment not critical for config structs
	AccessTokenTTL  time.Duration
	VerifyTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// RotateRefreshTokens replaces the refresh token on every refresh and
	// revokes all of a user's tokens when a replaced one is presented again.
	RotateRefreshTokens bool
	// ClientURL is the frontend base used in verification links.
	ClientURL   string
	MailTimeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

const (
	defaultRefreshTTL  = 30 * 24 * time.Hour
	defaultMailTimeout = 30 * time.Second
)

// Manager orchestrates the account lifecycle.
type Manager struct {
	store   Store
	hasher  Hasher
	issuer  *token.Issuer
	mailer  Mailer
	metrics Recorder
	cfg     Config

	dummyOnce sync.Once
	dummyHash string

	mailWG sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records operation outcomes on r.
func WithMetrics(r Recorder) Option {
	return func(m *Manager) {
		m.metrics = r
	}
}

// NewManager creates a Manager. Zero durations fall back to the defaults.
func NewManager(store Store, hasher Hasher, issuer *token.Issuer, mailer Mailer, cfg Config, opts ...Option) *Manager {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = token.DefaultAccessTTL
	}
	if cfg.VerifyTokenTTL <= 0 {
		cfg.VerifyTokenTTL = token.DefaultVerifyTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = defaultRefreshTTL
	}
	if cfg.MailTimeout <= 0 {
		cfg.MailTimeout = defaultMailTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{
		store:  store,
		hasher: hasher,
		issuer: issuer,
		mailer: mailer,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterParams holds the parameters for user registration.
type RegisterParams struct {
	Email       string
	Password    string
	DisplayName string
}

// Session is the result of a successful login.
type Session struct {
	UserID           string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Refreshed is the result of a refresh. RefreshToken is only set when
// rotation is enabled.
type Refreshed struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}

// Register creates an unverified user and sends the verification mail in
// the background. Mail problems never fail the registration.
func (m *Manager) Register(ctx context.Context, params RegisterParams) (string, error) {
	email := normalizeEmail(params.Email)
	if email == "" || params.Password == "" {
		m.observe("register", "invalid")
		return "", fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	if !validEmail(email) {
		m.observe("register", "invalid")
		return "", fmt.Errorf("%w: invalid email address", ErrValidation)
	}

	_, err := m.store.GetUserByEmail(ctx, email)
	if err == nil {
		m.observe("register", "conflict")
		slog.Warn("register_failed", "email", email, "reason", "email_exists")
		return "", ErrConflict
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("failed to check existing user: %w", err)
	}

	passwordHash, err := m.hasher.Hash(params.Password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	var displayName *string
	if name := strings.TrimSpace(params.DisplayName); name != "" {
		displayName = &name
	}

	user, err := m.store.CreateUser(ctx, email, passwordHash, displayName)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			m.observe("register", "conflict")
			return "", ErrConflict
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	m.observe("register", "success")
	slog.Info("register_success", "user_id", user.ID, "email", email)

	verifyToken, err := m.issuer.IssueVerification(user.ID, m.cfg.VerifyTokenTTL)
	if err != nil {
		m.observe("verification_mail", "failed")
		slog.Error("verification_mail_failed", "user_id", user.ID, "error", err)
		return user.ID, nil
	}
	m.sendVerification(ctx, user, verifyToken)

	return user.ID, nil
}

// VerifyEmail marks the user named by a verification token as verified.
// Verifying an already verified user succeeds.
func (m *Manager) VerifyEmail(ctx context.Context, verifyToken string) error {
	claims, err := m.issuer.Verify(verifyToken)
	if err != nil {
		m.observe("verify_email", "invalid_token")
		slog.Debug("verify_email_failed", "reason", "invalid_token", "error", err)
		return ErrInvalidToken
	}
	if claims.Purpose != token.PurposeVerify || claims.Subject == "" {
		m.observe("verify_email", "invalid_token")
		slog.Warn("verify_email_failed", "reason", "wrong_purpose")
		return ErrInvalidToken
	}

	if err := m.store.MarkEmailVerified(ctx, claims.Subject); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.observe("verify_email", "invalid_token")
			slog.Warn("verify_email_failed", "user_id", claims.Subject, "reason", "user_not_found")
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to verify email: %w", err)
	}

	m.observe("verify_email", "success")
	slog.Info("verify_email_success", "user_id", claims.Subject)
	return nil
}

// Login checks the credentials and issues an access and a refresh token.
// The password is checked before the verification state, so an unverified
// account is only revealed to someone who knows its password.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		m.observe("login", "invalid")
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := m.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Same work as a wrong password
			_ = m.hasher.Verify(m.dummy(), password)
			m.observe("login", "invalid_credentials")
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !m.hasher.Verify(user.PasswordHash, password) {
		m.observe("login", "invalid_credentials")
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		m.observe("login", "email_not_verified")
		slog.Warn("login_failed", "user_id", user.ID, "reason", "email_not_verified")
		return nil, ErrEmailNotVerified
	}

	accessToken, accessExpiresAt, err := m.issuer.IssueAccess(user.ID, user.Email, m.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	plain, hash, err := token.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	refreshExpiresAt := m.cfg.Now().Add(m.cfg.RefreshTokenTTL)
	if _, err := m.store.CreateRefreshToken(ctx, user.ID, hash, refreshExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	m.observe("login", "success")
	slog.Info("login_success", "user_id", user.ID)

	return &Session{
		UserID:           user.ID,
		AccessToken:      accessToken,
		RefreshToken:     plain,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// RefreshAccessToken issues a new access token for a valid refresh token.
// Every rejection is a *RefreshTokenError matching ErrInvalidRefreshToken.
func (m *Manager) RefreshAccessToken(ctx context.Context, refreshToken string) (*Refreshed, error) {
	if refreshToken == "" {
		m.observe("refresh", "invalid")
		return nil, fmt.Errorf("%w: refresh token is required", ErrMissingInput)
	}

	stored, err := m.store.GetRefreshTokenByHash(ctx, token.HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, m.rejectRefresh("", RefreshNotFound)
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	now := m.cfg.Now()
	switch {
	case stored.Revoked && m.cfg.RotateRefreshTokens && stored.IsRotated():
		return nil, m.revokeOnReuse(ctx, stored.UserID)
	case stored.Revoked:
		return nil, m.rejectRefresh(stored.UserID, RefreshRevoked)
	case stored.IsExpired(now):
		return nil, m.rejectRefresh(stored.UserID, RefreshExpired)
	}

	user, err := m.store.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, m.rejectRefresh(stored.UserID, RefreshNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	accessToken, accessExpiresAt, err := m.issuer.IssueAccess(user.ID, user.Email, m.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	result := &Refreshed{AccessToken: accessToken, AccessExpiresAt: accessExpiresAt}

	if m.cfg.RotateRefreshTokens {
		plain, hash, err := token.NewRefreshToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate refresh token: %w", err)
		}
		if _, err := m.store.RotateRefreshToken(ctx, stored.ID, hash, now.Add(m.cfg.RefreshTokenTTL)); err != nil {
			if errors.Is(err, repository.ErrStale) {
				// Lost a race against another refresh with the same token
				return nil, m.revokeOnReuse(ctx, stored.UserID)
			}
			return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
		}
		result.RefreshToken = plain
	}

	m.observe("refresh", "success")
	slog.Debug("refresh_success", "user_id", user.ID, "rotated", m.cfg.RotateRefreshTokens)
	return result, nil
}

func (m *Manager) rejectRefresh(userID string, reason RefreshFailure) error {
	m.observe("refresh", string(reason))
	slog.Warn("refresh_failed", "user_id", userID, "reason", string(reason))
	return &RefreshTokenError{Reason: reason}
}

// revokeOnReuse revokes every refresh token of the user after a replaced
// token was presented again.
func (m *Manager) revokeOnReuse(ctx context.Context, userID string) error {
	n, err := m.store.RevokeUserRefreshTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	slog.Warn("refresh_reuse_detected", "user_id", userID, "revoked", n)
	return m.rejectRefresh(userID, RefreshReused)
}

// Logout revokes a refresh token. Unknown or already revoked tokens are
// ignored.
func (m *Manager) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token is required", ErrMissingInput)
	}

	stored, err := m.store.GetRefreshTokenByHash(ctx, token.HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get refresh token: %w", err)
	}
	if stored.Revoked {
		return nil
	}

	if err := m.store.RevokeRefreshToken(ctx, stored.ID); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	m.observe("logout", "success")
	slog.Info("logout_success", "user_id", stored.UserID)
	return nil
}

// Authenticate resolves an access token to its user.
func (m *Manager) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := m.issuer.VerifyAccess(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := m.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// PruneExpiredTokens deletes refresh tokens past their expiry.
func (m *Manager) PruneExpiredTokens(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpiredRefreshTokens(ctx, m.cfg.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	if n > 0 {
		slog.Info("refresh_tokens_pruned", "count", n)
	}
	return n, nil
}

// Wait blocks until all background mail deliveries have finished.
func (m *Manager) Wait() {
	m.mailWG.Wait()
}

func (m *Manager) dummy() string {
	m.dummyOnce.Do(func() {
		hash, err := m.hasher.Hash("dummy-password-for-timing")
		if err != nil {
			slog.Error("dummy_hash_failed", "error", err)
			return
		}
		m.dummyHash = hash
	})
	return m.dummyHash
}

func (m *Manager) observe(operation, result string) {
	if m.metrics != nil {
		m.metrics.Observe(operation, result)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
