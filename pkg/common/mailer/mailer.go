package mailer

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"

	"github.com/quipper/poc/sis/be/pkg/common/logger"
)

// Sender delivers a single message.
type Sender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// Config holds SMTP settings. An empty Host disables delivery.
type Config struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	From               string `yaml:"from"`
	User               string `yaml:"user"`
	Pass               string `yaml:"pass"`
	TLSMode            string `yaml:"tls_mode"` // "auto" | "ssl" | "none"
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

type SMTPSender struct {
	cfg Config
}

// New returns nil when SMTP is not configured.
func New(cfg Config) *SMTPSender {
	if cfg.Host == "" {
		return nil
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) message(to, subject, htmlBody, textBody string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}
	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}
	return m
}

func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	logger.Debug("smtp send: host=%s port=%d to=%s subject=%q", s.cfg.Host, s.cfg.Port, to, subject)

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Pass)
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host, InsecureSkipVerify: s.cfg.InsecureSkipVerify}
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.cfg.InsecureSkipVerify}
	}

	if err := d.DialAndSend(s.message(to, subject, htmlBody, textBody)); err != nil {
		logger.Error("smtp send to %s: %v", to, err)
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
