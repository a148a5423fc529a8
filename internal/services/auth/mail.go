// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/game-meta-api/internal/models"
	"codeberg.org/oliverandrich/game-meta-api/internal/services/email"
)

// DeliveryResult describes one background mail delivery.
type DeliveryResult struct {
	To       string
	Err      error
	Duration time.Duration
}

// sendVerification delivers the verification mail on its own goroutine.
// The request context only contributes its values (locale), not its
// cancellation.
func (m *Manager) sendVerification(ctx context.Context, user *models.User, verifyToken string) {
	to := user.Email
	subject, body := email.VerificationMessage(ctx, user.Name(), m.cfg.ClientURL, verifyToken)
	mailCtx := context.WithoutCancel(ctx)

	m.mailWG.Add(1)
	go func() {
		defer m.mailWG.Done()
		m.report(m.deliver(mailCtx, to, subject, body))
	}()
}

func (m *Manager) deliver(ctx context.Context, to, subject, body string) (result DeliveryResult) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.MailTimeout)
	defer cancel()

	start := time.Now()
	result.To = to
	defer func() {
		if p := recover(); p != nil {
			result.Err = fmt.Errorf("mailer panic: %v", p)
		}
		result.Duration = time.Since(start)
	}()

	result.Err = m.mailer.Send(ctx, to, subject, body)
	return result
}

func (m *Manager) report(result DeliveryResult) {
	if result.Err != nil {
		m.observe("verification_mail", "failed")
		slog.Warn("verification_mail_failed", "to", result.To, "duration", result.Duration, "error", result.Err)
		return
	}
	m.observe("verification_mail", "sent")
	slog.Info("verification_mail_sent", "to", result.To, "duration", result.Duration)
}
