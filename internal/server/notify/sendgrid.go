package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender sends through the SendGrid v3 mail API.
type SendGridSender struct {
	client *sendgrid.Client
}

// NewSendGridSender returns a sender using apiKey. host overrides
// https://api.sendgrid.com when non-empty.
func NewSendGridSender(apiKey, host string) *SendGridSender {
	client := sendgrid.NewSendClient(apiKey)
	if host != "" {
		client.Request.BaseURL = host + "/v3/mail/send"
	}
	return &SendGridSender{client: client}
}

func (s *SendGridSender) Send(ctx context.Context, m Message) error {
	msg := mail.NewSingleEmail(mail.NewEmail("", m.From), m.Subject, mail.NewEmail("", m.To), m.Text, m.HTML)

	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sendgrid send: unexpected status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
