package utils

import (
	"errors"

	"gopkg.in/gomail.v2"
)

// Mailer sends plain text mail through the configured SMTP relay.
type Mailer struct {
	dialer *gomail.Dialer
	sender string
}

func NewMailer(cfg *Config) (*Mailer, error) {
	if cfg.SMTPHost == "" || cfg.SMTPSender == "" {
		return nil, errors.New("SMTP_HOST and SMTP_SENDER are required for email alerts")
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		sender: cfg.SMTPSender,
	}, nil
}

// Send delivers one message to every recipient.
func (m *Mailer) Send(to []string, subject, body string) error {
	if len(to) == 0 {
		return errors.New("no recipients")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.sender)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	return m.dialer.DialAndSend(msg)
}
