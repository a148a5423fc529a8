// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/game-meta-api/internal/config"
	"codeberg.org/oliverandrich/game-meta-api/internal/database"
	"codeberg.org/oliverandrich/game-meta-api/internal/handlers"
	"codeberg.org/oliverandrich/game-meta-api/internal/i18n"
	"codeberg.org/oliverandrich/game-meta-api/internal/metrics"
	"codeberg.org/oliverandrich/game-meta-api/internal/middleware"
	"codeberg.org/oliverandrich/game-meta-api/internal/repository"
	"codeberg.org/oliverandrich/game-meta-api/internal/services/auth"
	"codeberg.org/oliverandrich/game-meta-api/internal/services/email"
	"codeberg.org/oliverandrich/game-meta-api/internal/services/password"
	"codeberg.org/oliverandrich/game-meta-api/internal/services/token"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

const shutdownTimeout = 10 * time.Second

// App is the assembled HTTP application.
type App struct {
	Echo    *echo.Echo
	Manager *auth.Manager
	Metrics *metrics.Metrics
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	slog.SetDefault(newLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"rotate_refresh_tokens", cfg.Auth.RotateRefreshTokens,
	)

	// Database, migrations are applied on open
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	mailer, err := email.New(cfg.SMTP)
	if err != nil {
		return fmt.Errorf("failed to set up mail: %w", err)
	}
	if !cfg.SMTP.Enabled() {
		slog.Warn("smtp not configured, verification mails are only logged")
	}

	app, err := New(cfg, db, mailer)
	if err != nil {
		return err
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go runJanitor(janitorCtx, app.Manager, cfg.Auth.PruneInterval)

	return startWithGracefulShutdown(ctx, app, cfg)
}

// New wires the account services onto db and builds the echo instance.
func New(cfg *config.Config, db *sqlx.DB, mailer auth.Mailer) (*App, error) {
	issuer, err := token.New(token.Config{Secret: []byte(cfg.Auth.JWTSecret)})
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	hasher := password.New(password.Params{
		MemoryKiB:   cfg.Argon2.MemoryKiB,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
	})

	m := metrics.New()
	manager := auth.NewManager(repository.New(db), hasher, issuer, mailer, auth.Config{
		AccessTokenTTL:      cfg.Auth.AccessTokenTTL,
		VerifyTokenTTL:      cfg.Auth.VerifyTokenTTL,
		RefreshTokenTTL:     cfg.Auth.RefreshTokenTTL,
		RotateRefreshTokens: cfg.Auth.RotateRefreshTokens,
		ClientURL:           cfg.Auth.ClientURL,
	}, auth.WithMetrics(m))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.HTTPErrorHandler

	setupMiddleware(e, cfg)
	setupRoutes(e, manager, m)

	return &App{Echo: e, Manager: manager, Metrics: m}, nil
}

func setupRoutes(e *echo.Echo, manager *auth.Manager, m *metrics.Metrics) {
	h := handlers.New(manager)

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	api := e.Group("/api")

	a := api.Group("/auth")
	a.POST("/register", h.Register)
	a.POST("/verify-email", h.VerifyEmail)
	a.POST("/login", h.Login)
	a.POST("/token/refresh", h.Refresh)
	a.POST("/logout", h.Logout)

	player := api.Group("/player", middleware.RequireBearer(manager))
	player.GET("/profile", h.Profile)
}

// runJanitor deletes expired refresh tokens every interval until ctx ends.
func runJanitor(ctx context.Context, manager *auth.Manager, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := manager.PruneExpiredTokens(ctx); err != nil && ctx.Err() == nil {
				slog.Error("prune_failed", "error", err)
			}
		}
	}
}

func startWithGracefulShutdown(ctx context.Context, app *App, cfg *config.Config) error {
	errChan := make(chan error, 1)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("server running", "url", cfg.Server.BaseURL)
		if err := app.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Echo.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	// Let in-flight verification mails finish before the database closes.
	app.Manager.Wait()

	slog.Info("server stopped")
	return nil
}
