package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

// EmailConfig holds SMTP settings for e-mail delivery.
type EmailConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Subject  string
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// Email sends plain-text messages over SMTP.
type Email struct {
	cfg  EmailConfig
	send sendFunc
}

// NewEmail creates an e-mail notifier.
func NewEmail(cfg EmailConfig) *Email {
	if cfg.Subject == "" {
		cfg.Subject = "GiroBot Daily Update"
	}
	return &Email{
		cfg:  cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}
}

func (m *Email) Name() string { return "email" }

// Send mails message to every recipient. Servers that do not offer AUTH
// are retried without credentials.
func (m *Email) Send(ctx context.Context, message string) error {
	if m.cfg.Server == "" || m.cfg.From == "" || len(m.cfg.To) == 0 {
		return &SendError{Channel: m.Name(), Cause: ErrNotConfigured}
	}
	if err := ctx.Err(); err != nil {
		return &SendError{Channel: m.Name(), Cause: err}
	}

	mail := email.NewEmail()
	mail.From = m.cfg.From
	mail.To = m.cfg.To
	mail.Subject = m.cfg.Subject
	mail.Text = []byte(message)

	addr := fmt.Sprintf("%s:%d", m.cfg.Server, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Server)
	}

	err := m.send(mail, addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = m.send(mail, addr, nil)
	}
	if err != nil {
		return &SendError{Channel: m.Name(), Cause: err}
	}
	return nil
}
