// Package mailer delivers transactional email through an SMTP relay.
package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer sends one-time codes to users.
type Mailer interface {
	SendOTP(to, code string) error
}

// Config holds SMTP relay settings.
type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// SMTPMailer is a gomail-backed Mailer.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer creates an SMTPMailer from the given config.
func NewSMTPMailer(cfg Config) *SMTPMailer {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		from:   from,
	}
}

// SendOTP emails the code to the recipient.
func (m *SMTPMailer) SendOTP(to, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your OTP Code")
	msg.SetBody("text/plain", fmt.Sprintf("Your OTP is: %s", code))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send OTP email to %s: %w", to, err)
	}
	return nil
}
