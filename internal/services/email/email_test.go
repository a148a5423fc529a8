// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/game-meta-api/internal/config"
	"codeberg.org/oliverandrich/game-meta-api/internal/i18n"
	"codeberg.org/oliverandrich/game-meta-api/internal/services/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func validSMTPConfig() config.SMTPConfig {
	return config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "testuser",
		Password: "testpass",
		From:     "noreply@example.com",
		FromName: "Game",
		TLS:      true,
	}
}

func TestNewSMTPSender(t *testing.T) {
	sender, err := email.NewSMTPSender(validSMTPConfig())

	require.NoError(t, err)
	assert.NotNil(t, sender)
}

func TestNewSMTPSender_MissingHost(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.Host = ""

	_, err := email.NewSMTPSender(cfg)

	assert.ErrorIs(t, err, email.ErrHostRequired)
}

func TestNewSMTPSender_MissingFrom(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.From = ""

	_, err := email.NewSMTPSender(cfg)

	assert.ErrorIs(t, err, email.ErrFromRequired)
}

func TestNew_NoopWithoutHost(t *testing.T) {
	sender, err := email.New(config.SMTPConfig{})

	require.NoError(t, err)
	assert.IsType(t, email.NoopSender{}, sender)
	assert.NoError(t, sender.Send(context.Background(), "a@x.com", "subject", "body"))
}

func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestNoopSender_HidesBodyAtInfo(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	err := email.NoopSender{}.Send(context.Background(), "a@x.com", "Verify", "verify-email?token=secret-token")

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "a@x.com")
	assert.Contains(t, buf.String(), "Verify")
	assert.NotContains(t, buf.String(), "secret-token")
}

func TestNoopSender_LogsBodyAtDebug(t *testing.T) {
	buf := captureLogs(t, slog.LevelDebug)

	err := email.NoopSender{}.Send(context.Background(), "a@x.com", "Verify", "verify-email?token=secret-token")

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "secret-token")
}

func TestNew_SMTPWithHost(t *testing.T) {
	sender, err := email.New(validSMTPConfig())

	require.NoError(t, err)
	assert.IsType(t, &email.SMTPSender{}, sender)
}

func TestSMTPSender_InvalidRecipient(t *testing.T) {
	sender, err := email.NewSMTPSender(validSMTPConfig())
	require.NoError(t, err)

	err = sender.Send(context.Background(), "not an address", "subject", "body")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "setting to address")
}

func TestVerificationURL(t *testing.T) {
	tests := []struct {
		clientURL string
		token     string
		expected  string
	}{
		{"http://localhost:3000", "abc", "http://localhost:3000/verify-email?token=abc"},
		{"https://play.example.com/", "abc", "https://play.example.com/verify-email?token=abc"},
		{"https://play.example.com", "a+b=", "https://play.example.com/verify-email?token=a%2Bb%3D"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, email.VerificationURL(tt.clientURL, tt.token))
		})
	}
}

func TestVerificationMessage(t *testing.T) {
	require.NoError(t, i18n.Init())
	ctx := i18n.WithLocale(context.Background(), language.English)

	subject, body := email.VerificationMessage(ctx, "Aladdin", "http://localhost:3000", "tok")

	assert.Equal(t, "Verify your email address", subject)
	assert.True(t, strings.HasPrefix(body, "Hi Aladdin,"), body)
	assert.Contains(t, body, "http://localhost:3000/verify-email?token=tok")
}

func TestVerificationMessage_German(t *testing.T) {
	require.NoError(t, i18n.Init())
	ctx := i18n.WithLocale(context.Background(), language.German)

	subject, body := email.VerificationMessage(ctx, "Aladdin", "http://localhost:3000", "tok")

	assert.Equal(t, "Bestätige deine E-Mail-Adresse", subject)
	assert.True(t, strings.HasPrefix(body, "Hallo Aladdin,"), body)
	assert.Contains(t, body, "verify-email?token=tok")
}
