// Package mail delivers docgate account emails.
package mail

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

const senderName = "docgate"

// SMTPConfig addresses an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP sends mail through an SMTP relay.
type SMTP struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTP) SendVerification(ctx context.Context, to, link string) error {
	return s.send(ctx, s.message(to, "Verify your email address", verificationBody(link)))
}

func (s *SMTP) SendPasswordReset(ctx context.Context, to, link string) error {
	return s.send(ctx, s.message(to, "Reset your password", resetBody(link)))
}

func (s *SMTP) message(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.From, senderName))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}

// send gives up early when ctx is already done; gomail itself is not
// cancellable once dialing starts.
func (s *SMTP) send(ctx context.Context, m *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func verificationBody(link string) string {
	l := html.EscapeString(link)
	return fmt.Sprintf(`<p>Welcome to docgate.</p>
<p>Confirm your email address by opening the link below. It is valid for 24 hours.</p>
<p><a href="%s">%s</a></p>
<p>If you did not sign up, ignore this message.</p>`, l, l)
}

func resetBody(link string) string {
	l := html.EscapeString(link)
	return fmt.Sprintf(`<p>A password reset was requested for your docgate account.</p>
<p>Choose a new password by opening the link below. It is valid for 1 hour.</p>
<p><a href="%s">%s</a></p>
<p>If you did not request this, ignore this message. Your password is unchanged.</p>`, l, l)
}

// Log writes outgoing mail to a logger instead of sending it. It is used
// when no SMTP relay is configured. Links are logged at debug level only.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) SendVerification(_ context.Context, to, link string) error {
	l.log.Info("verification mail not sent, no smtp relay", zap.String("to", to))
	l.log.Debug("verification mail", zap.String("to", to), zap.String("link", link))
	return nil
}

func (l *Log) SendPasswordReset(_ context.Context, to, link string) error {
	l.log.Info("password reset mail not sent, no smtp relay", zap.String("to", to))
	l.log.Debug("password reset mail", zap.String("to", to), zap.String("link", link))
	return nil
}
