package mailer

import (
	"context"
	"log/slog"
	"time"
)

// LogMailer writes email events to the log instead of sending them.
// Used in development and test environments where SES is not configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a new LogMailer
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendVerificationEmail logs the verification request.
func (m *LogMailer) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.logger.Info("verification email (log only)",
		slog.String("email", email),
		slog.Time("expires_at", expiresAt))
	return nil
}

// SendPasswordResetEmail logs the reset request.
func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.logger.Info("password reset email (log only)",
		slog.String("email", email),
		slog.Time("expires_at", expiresAt))
	return nil
}
