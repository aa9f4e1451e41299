// Package mailer delivers the two transactional emails the auth flows
// need: password-reset links and welcome mail with a temporary password.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Sender is the email collaborator consumed by the services. Faked in
// tests; backed by SMTP in production.
type Sender interface {
	SendPasswordReset(ctx context.Context, to string, name string, link string) error
	SendWelcome(ctx context.Context, to string, name string, tempPassword string) error
}

type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPSender(host string, port int, username string, password string, from string) *SMTPSender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
	}
}

func (s *SMTPSender) SendPasswordReset(ctx context.Context, to string, name string, link string) error {
	body := fmt.Sprintf(`Hello %s,

A password reset was requested for your account. Open the link below to
choose a new password. The link expires in 30 minutes and can be used once.

%s

If you did not request this, you can ignore this message.

The operations team`, name, link)

	return s.send(ctx, to, "Password reset request", body)
}

func (s *SMTPSender) SendWelcome(ctx context.Context, to string, name string, tempPassword string) error {
	body := fmt.Sprintf(`Hello %s,

Your account on the operations dashboard has been created.

Email: %s
Temporary password: %s

For security, please change your password after your first login.

The operations team`, name, to, tempPassword)

	return s.send(ctx, to, "Welcome - your account details", body)
}

func (s *SMTPSender) send(ctx context.Context, to string, subject string, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
