// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/game-meta-api/internal/database"
	"codeberg.org/oliverandrich/game-meta-api/internal/i18n"
	"codeberg.org/oliverandrich/game-meta-api/internal/metrics"
	"codeberg.org/oliverandrich/game-meta-api/internal/models"
	"codeberg.org/oliverandrich/game-meta-api/internal/repository"
	"codeberg.org/oliverandrich/game-meta-api/internal/services/auth"
	"codeberg.org/oliverandrich/game-meta-api/internal/services/password"
	"codeberg.org/oliverandrich/game-meta-api/internal/services/token"
	"github.com/labstack/echo/v4"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// TestSecret is a signing secret long enough to pass validation.
const TestSecret = "test-secret-test-secret-test-secret!"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates an unverified test user in the database. The stored
// hash is a placeholder and never verifies.
func NewTestUser(t *testing.T, repo *repository.Repository, email string) *models.User {
	t.Helper()
	ctx := context.Background()
	user, err := repo.CreateUser(ctx, email, "$argon2id$placeholder", nil)
	require.NoError(t, err)
	return user
}

// Mail is a message captured by RecordingSender.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// RecordingSender records sent mail instead of delivering it.
type RecordingSender struct {
	mu   sync.Mutex
	sent []Mail
	Err  error // returned from Send when set
}

// Send records the message.
func (s *RecordingSender) Send(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.sent = append(s.sent, Mail{To: to, Subject: subject, Body: body})
	return nil
}

// Sent returns a copy of the recorded messages.
func (s *RecordingSender) Sent() []Mail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Mail(nil), s.sent...)
}

// FastHasher returns a password hasher with minimal cost parameters.
func FastHasher() *password.Hasher {
	return password.New(password.Params{MemoryKiB: 64, Iterations: 1, Parallelism: 1})
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock set to the current time, truncated to seconds.
func NewClock() *Clock {
	return &Clock{now: time.Now().UTC().Truncate(time.Second)}
}

// Now returns the current clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Accounts bundles an account manager wired to an in-memory database, a
// recording mailer, a manual clock and its own metrics registry.
type Accounts struct {
	Manager *auth.Manager
	Issuer  *token.Issuer
	Repo    *repository.Repository
	DB      *sqlx.DB
	Mailer  *RecordingSender
	Clock   *Clock
	Metrics *metrics.Metrics
}

// NewAccounts creates an account manager for tests. cfg.Now defaults to
// the returned Clock. Pending mail deliveries are awaited on cleanup.
func NewAccounts(t *testing.T, cfg auth.Config) *Accounts {
	t.Helper()
	require.NoError(t, i18n.Init())

	db, repo := NewTestDB(t)
	clock := NewClock()
	if cfg.Now == nil {
		cfg.Now = clock.Now
	}
	issuer, err := token.New(token.Config{Secret: []byte(TestSecret), Now: cfg.Now})
	require.NoError(t, err)
	if cfg.ClientURL == "" {
		cfg.ClientURL = "http://localhost:3000"
	}

	m := metrics.New()
	mailer := &RecordingSender{}
	manager := auth.NewManager(repo, FastHasher(), issuer, mailer, cfg, auth.WithMetrics(m))
	t.Cleanup(manager.Wait)

	return &Accounts{
		Manager: manager,
		Issuer:  issuer,
		Repo:    repo,
		DB:      db,
		Mailer:  mailer,
		Clock:   clock,
		Metrics: m,
	}
}

// Count returns the value of an operation outcome counter.
func (a *Accounts) Count(operation, result string) float64 {
	return promtestutil.ToFloat64(a.Metrics.Counter(operation, result))
}

var verifyLinkPattern = regexp.MustCompile(`verify-email\?token=(\S+)`)

// VerificationToken returns the token from the most recent verification mail.
func (a *Accounts) VerificationToken(t *testing.T) string {
	t.Helper()
	a.Manager.Wait()
	sent := a.Mailer.Sent()
	require.NotEmpty(t, sent, "no verification mail sent")
	match := verifyLinkPattern.FindStringSubmatch(sent[len(sent)-1].Body)
	require.Len(t, match, 2)
	tok, err := url.QueryUnescape(match[1])
	require.NoError(t, err)
	return tok
}

// RegisterVerified registers a user, verifies the email and returns the id.
func (a *Accounts) RegisterVerified(t *testing.T, email, pw string) string {
	t.Helper()
	ctx := context.Background()
	userID, err := a.Manager.Register(ctx, auth.RegisterParams{Email: email, Password: pw})
	require.NoError(t, err)
	require.NoError(t, a.Manager.VerifyEmail(ctx, a.VerificationToken(t)))
	return userID
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
