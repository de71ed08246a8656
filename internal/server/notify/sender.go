// Package notify delivers account emails (reset codes, generated passwords)
// through a pluggable Sender: Mailgun, SendGrid, plain SMTP, or the log.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// Message is a single outbound email.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Provider names accepted by NewSender.
const (
	ProviderLog      = "log"
	ProviderMailgun  = "mailgun"
	ProviderSendGrid = "sendgrid"
	ProviderSMTP     = "smtp"
)

// SenderConfig selects and configures a provider.
type SenderConfig struct {
	Provider string

	MailgunDomain string
	MailgunAPIKey string

	SendGridAPIKey string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
}

// NewSender builds the Sender for cfg.Provider after checking that the
// provider's settings are present.
func NewSender(cfg SenderConfig, log logging.Logger) (Sender, error) {
	switch cfg.Provider {
	case ProviderLog, "":
		return NewLogSender(log), nil
	case ProviderMailgun:
		if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" {
			return nil, errors.New("invalid Mailgun configuration")
		}
		return NewMailgunSender(cfg.MailgunDomain, cfg.MailgunAPIKey, ""), nil
	case ProviderSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, errors.New("invalid SendGrid configuration")
		}
		return NewSendGridSender(cfg.SendGridAPIKey, ""), nil
	case ProviderSMTP:
		if cfg.SMTPHost == "" || cfg.SMTPPort == "" {
			return nil, errors.New("invalid SMTP configuration")
		}
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
