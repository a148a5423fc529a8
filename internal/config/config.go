// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

// MinSecretLength is the minimum length of the JWT signing secret in bytes.
const MinSecretLength = 32

var (
	ErrSecretRequired = errors.New("jwt secret is required")
	ErrSecretTooShort = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Argon2   Argon2Config
	SMTP     SMTPConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host           string
	Port           int
	BaseURL        string
	MaxBodySize    int      // in MB
	AllowedOrigins []string // CORS origins, "*" allows any
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type AuthConfig struct { //nolint:govet // fieldalignment not critical for config structs
	JWTSecret           string
	AccessTokenTTL      time.Duration
	VerifyTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	RotateRefreshTokens bool
	ClientURL           string // frontend URL used in verification links
	PruneInterval       time.Duration
}

type Argon2Config struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether an SMTP server is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:           cmd.String("host"),
			Port:           int(cmd.Int("port")),
			BaseURL:        cmd.String("base-url"),
			MaxBodySize:    int(cmd.Int("max-body-size")),
			AllowedOrigins: cmd.StringSlice("cors-allowed-origins"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Auth: AuthConfig{
			JWTSecret:           cmd.String("jwt-secret"),
			AccessTokenTTL:      cmd.Duration("access-token-ttl"),
			VerifyTokenTTL:      cmd.Duration("verify-token-ttl"),
			RefreshTokenTTL:     cmd.Duration("refresh-token-ttl"),
			RotateRefreshTokens: cmd.Bool("rotate-refresh-tokens"),
			ClientURL:           strings.TrimSuffix(cmd.String("client-url"), "/"),
		},
		Argon2: Argon2Config{
			MemoryKiB:   uint32(cmd.Uint("argon2-memory-kib")), //nolint:gosec // bounded by flag validation
			Iterations:  uint32(cmd.Uint("argon2-iterations")), //nolint:gosec // bounded by flag validation
			Parallelism: uint8(cmd.Uint("argon2-parallelism")), //nolint:gosec // bounded by flag validation
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Auth.JWTSecret == "":
		return ErrSecretRequired
	case len(c.Auth.JWTSecret) < MinSecretLength:
		return ErrSecretTooShort
	}
	if c.Argon2.Parallelism == 0 || c.Argon2.Iterations == 0 || c.Argon2.MemoryKiB < 8 {
		return fmt.Errorf("invalid argon2 parameters: m=%d t=%d p=%d",
			c.Argon2.MemoryKiB, c.Argon2.Iterations, c.Argon2.Parallelism)
	}
	return nil
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	scheme := "http"
	if !IsLocalhost(host) && port == 443 {
		scheme = "https"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   4000,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the API",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringSliceFlag{
			Name:    "cors-allowed-origins",
			Value:   []string{"*"},
			Usage:   "Origins allowed to call the API from a browser (* allows any)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CORS_ALLOWED_ORIGINS"), toml.TOML("server.cors_allowed_origins", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN (SQLite path or postgres:// URL)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		// Auth flags
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "Secret used to sign access and verification tokens (min 32 bytes)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("JWT_SECRET"), toml.TOML("auth.jwt_secret", configFile)),
		},
		&cli.DurationFlag{
			Name:    "access-token-ttl",
			Value:   15 * time.Minute,
			Usage:   "Lifetime of access tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ACCESS_TOKEN_TTL"), toml.TOML("auth.access_token_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "verify-token-ttl",
			Value:   24 * time.Hour,
			Usage:   "Lifetime of email verification tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("VERIFY_TOKEN_TTL"), toml.TOML("auth.verify_token_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "refresh-token-ttl",
			Value:   30 * 24 * time.Hour,
			Usage:   "Lifetime of refresh tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REFRESH_TOKEN_TTL"), toml.TOML("auth.refresh_token_ttl", configFile)),
		},
		&cli.BoolFlag{
			Name:    "rotate-refresh-tokens",
			Usage:   "Issue a new refresh token on every refresh and detect reuse of rotated ones",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ROTATE_REFRESH_TOKENS"), toml.TOML("auth.rotate_refresh_tokens", configFile)),
		},
		&cli.StringFlag{
			Name:    "client-url",
			Value:   "http://localhost:3000",
			Usage:   "Client URL used to build email verification links",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CLIENT_URL"), toml.TOML("auth.client_url", configFile)),
		},
		&cli.DurationFlag{
			Name:    "prune-interval",
			Value:   time.Hour,
			Usage:   "Interval for deleting expired refresh tokens (0 disables)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PRUNE_INTERVAL"), toml.TOML("auth.prune_interval", configFile)),
		},
		// Argon2 flags
		&cli.UintFlag{
			Name:    "argon2-memory-kib",
			Value:   64 * 1024,
			Usage:   "Argon2id memory cost in KiB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ARGON2_MEMORY_KIB"), toml.TOML("argon2.memory_kib", configFile)),
		},
		&cli.UintFlag{
			Name:    "argon2-iterations",
			Value:   3,
			Usage:   "Argon2id iterations",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ARGON2_ITERATIONS"), toml.TOML("argon2.iterations", configFile)),
		},
		&cli.UintFlag{
			Name:    "argon2-parallelism",
			Value:   2,
			Usage:   "Argon2id parallelism",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ARGON2_PARALLELISM"), toml.TOML("argon2.parallelism", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host (verification mails are only logged if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USER"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASS"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address for outgoing mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Usage:   "Sender display name for outgoing mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
	}
}
