// Package mail is the email-delivery collaborator of the auth service.
package mail

import (
	"context"

	"sportsroz.org/internal/obs"
)

// LogSender writes outbound messages to the structured log instead of an
// SMTP relay. It stands in for real delivery in development and tests; a
// production deployment swaps in a transport-backed implementation behind
// the same auth.Mailer interface.
type LogSender struct{}

// NewLogSender returns the log-backed sender.
func NewLogSender() LogSender { return LogSender{} }

// SendOTP records the verification code for the recipient.
func (LogSender) SendOTP(_ context.Context, email, name, code string) error {
	obs.Info("mail.otp", map[string]any{
		"to":   email,
		"name": name,
		"code": code,
	})
	return nil
}

// SendTempPassword records the temporary password for the recipient.
func (LogSender) SendTempPassword(_ context.Context, email, name, password string) error {
	obs.Info("mail.temp_password", map[string]any{
		"to":   email,
		"name": name,
	})
	// The password itself never reaches the log; only delivery is recorded.
	_ = password
	return nil
}
