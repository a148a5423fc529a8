// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email delivers account mails over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"codeberg.org/oliverandrich/game-meta-api/internal/config"
	"codeberg.org/oliverandrich/game-meta-api/internal/i18n"
	"github.com/wneessen/go-mail"
)

var (
	ErrHostRequired = errors.New("SMTP host is required")
	ErrFromRequired = errors.New("SMTP from address is required")
)

// Sender delivers a plain text message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New returns an SMTP sender when a host is configured and a NoopSender
// otherwise.
func New(cfg config.SMTPConfig) (Sender, error) {
	if !cfg.Enabled() {
		return NoopSender{}, nil
	}
	return NewSMTPSender(cfg)
}

// SMTPSender sends mail via SMTP using go-mail.
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender creates a new SMTP sender.
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, ErrHostRequired
	}
	if cfg.From == "" {
		return nil, ErrFromRequired
	}
	return &SMTPSender{cfg: cfg}, nil
}

// Send builds the message and delivers it in a single SMTP session.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Implicit TLS on 465, STARTTLS elsewhere
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	return opts
}

// NoopSender only logs outgoing mail. Used when SMTP is not configured.
type NoopSender struct{}

// Send logs recipient and subject. The body carries live tokens and is only
// logged at debug level.
func (NoopSender) Send(ctx context.Context, to, subject, body string) error {
	slog.InfoContext(ctx, "mail_not_sent", "reason", "smtp_disabled", "to", to, "subject", subject)
	slog.DebugContext(ctx, "mail_not_sent_body", "to", to, "body", body)
	return nil
}

// VerificationURL builds the link the client opens to verify an email.
func VerificationURL(clientURL, token string) string {
	return fmt.Sprintf("%s/verify-email?token=%s",
		strings.TrimSuffix(clientURL, "/"), url.QueryEscape(token))
}

// VerificationMessage returns the localized subject and body of the
// verification mail addressed to name. The locale is taken from ctx.
func VerificationMessage(ctx context.Context, name, clientURL, token string) (subject, body string) {
	subject = i18n.T(ctx, "email_verification_subject")
	body = i18n.TData(ctx, "email_verification_body", map[string]any{
		"Name":      name,
		"VerifyURL": VerificationURL(clientURL, token),
	})
	return subject, body
}
