// Package mail sends transactional email. Delivery is always best-effort:
// callers log failures and never roll back the state change that triggered
// the message.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer sends the transactional messages WatchClub emits.
type Mailer interface {
	SendVerification(ctx context.Context, to, code string) error
	SendWelcome(ctx context.Context, to, fullName string) error
	SendPasswordReset(ctx context.Context, to, resetURL string) error
	SendResetSuccess(ctx context.Context, to string) error
	SendGroupInvitation(ctx context.Context, to, code, senderName, groupName string) error
}

// SMTPMailer delivers mail through a plain SMTP relay.
type SMTPMailer struct {
	addr   string
	auth   smtp.Auth
	sender string
}

// NewSMTPMailer configures a mailer for the given relay address
// ("host:port"). Credentials are optional for relays that accept
// unauthenticated local delivery.
func NewSMTPMailer(addr, username, password, sender string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{addr: addr, auth: auth, sender: sender}
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.sender,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(m.addr, m.auth, m.sender, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// SendVerification delivers the email verification code.
func (m *SMTPMailer) SendVerification(_ context.Context, to, code string) error {
	return m.send(to, "Verify your email", renderVerification(code))
}

// SendWelcome delivers the post-verification welcome message.
func (m *SMTPMailer) SendWelcome(_ context.Context, to, fullName string) error {
	return m.send(to, "Welcome to WatchClub", renderWelcome(fullName))
}

// SendPasswordReset delivers the password reset link.
func (m *SMTPMailer) SendPasswordReset(_ context.Context, to, resetURL string) error {
	return m.send(to, "Reset your password", renderPasswordReset(resetURL))
}

// SendResetSuccess confirms a completed password reset.
func (m *SMTPMailer) SendResetSuccess(_ context.Context, to string) error {
	return m.send(to, "Your password was changed", renderResetSuccess())
}

// SendGroupInvitation delivers a group join invitation.
func (m *SMTPMailer) SendGroupInvitation(_ context.Context, to, code, senderName, groupName string) error {
	return m.send(to, "Invitation to join a group", renderInvitation(code, senderName, groupName))
}

// NopMailer discards all messages. Used in tests and local development
// without a relay.
type NopMailer struct{}

func (NopMailer) SendVerification(context.Context, string, string) error { return nil }
func (NopMailer) SendWelcome(context.Context, string, string) error      { return nil }
func (NopMailer) SendPasswordReset(context.Context, string, string) error {
	return nil
}
func (NopMailer) SendResetSuccess(context.Context, string) error { return nil }
func (NopMailer) SendGroupInvitation(context.Context, string, string, string, string) error {
	return nil
}

var _ Mailer = (*SMTPMailer)(nil)
var _ Mailer = NopMailer{}
