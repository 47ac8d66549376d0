// Package mail delivers outbound notification email. The rest of the app
// talks to the Mailer interface so tests and development setups can swap the
// transport.
package mail

import (
	"context"
	"fmt"

	"github.com/reqforge/apiserver/config"
	"github.com/reqforge/apiserver/internal/logging"
	"gopkg.in/gomail.v2"
)

// Mailer sends a password-reset link to a recipient.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// SMTPMailer delivers mail over SMTP.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Reset your password")
	msg.SetBody("text/plain", resetBody(resetURL))
	msg.AddAlternative("text/html", resetHTMLBody(resetURL))

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func resetBody(resetURL string) string {
	return fmt.Sprintf(`Hello,

We received a request to reset your password. If you did not make this
request, you can ignore this email.

To choose a new password, open the link below:

%s

The link expires in 24 hours.

The ReqForge team
`, resetURL)
}

func resetHTMLBody(resetURL string) string {
	return fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
<h2>Reset your password</h2>
<p>We received a request to reset your password. If you did not make this request, you can ignore this email.</p>
<p><a href="%[1]s">Reset password</a></p>
<p>Or copy this link into your browser:</p>
<p>%[1]s</p>
<p>The link expires in 24 hours.</p>
<p>The ReqForge team</p>
</div>`, resetURL)
}

// LogMailer is the development mailer: instead of delivering mail it logs the
// reset link so it can be followed by hand. Callers must not depend on it
// for correctness.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	m.log.Info(ctx, "password reset email (dev preview)", "to", to, "reset_url", resetURL)
	return nil
}
