package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// MailerConfig holds SMTP configuration for the email code sender.
type MailerConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
	Subject  string `env:"SMTP_OTP_SUBJECT" envDefault:"Your verification code"`
}

// Validate checks the mailer configuration.
func (c *MailerConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("missing SMTP host")
	}
	if c.Port == 0 {
		return fmt.Errorf("missing SMTP port")
	}
	if c.From == "" {
		return fmt.Errorf("missing SMTP from address")
	}
	return nil
}

// Mailer is a Sender that delivers codes over SMTP.
type Mailer struct {
	config MailerConfig
	dialer *gomail.Dialer
}

// NewMailer creates a Mailer from the given configuration.
func NewMailer(cfg MailerConfig) (*Mailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Mailer{
		config: cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

// Send delivers the code to the recipient's email address.
func (m *Mailer) Send(_ context.Context, recipient, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", m.config.Subject)
	msg.SetBody("text/plain", fmt.Sprintf("Your verification code is %s. It is valid for one login attempt.", code))

	return m.dialer.DialAndSend(msg)
}
