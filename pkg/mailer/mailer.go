// Package mailer sends HTML email over SMTP.
package mailer

import (
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

// ErrNotConfigured is returned when no SMTP host is set.
var ErrNotConfigured = errors.New("smtp not configured")

// Config holds SMTP settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

// Mailer sends messages through one SMTP relay.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	cfg    Config
}

// New creates a Mailer. Sending fails with ErrNotConfigured when Host is empty.
func New(cfg Config) *Mailer {
	m := &Mailer{cfg: cfg}
	if cfg.Host != "" {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return m
}

// Message builds the gomail message for one recipient.
func (m *Mailer) Message(to, subject, html string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.FromAddress, m.cfg.FromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)
	return msg
}

// Send delivers one HTML message.
func (m *Mailer) Send(to, subject, html string) error {
	if m.dialer == nil {
		return ErrNotConfigured
	}
	if err := m.dialer.DialAndSend(m.Message(to, subject, html)); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}
