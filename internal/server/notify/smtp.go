package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// smtpSendMail is a seam for testing smtp.SendMail.
var smtpSendMail = smtp.SendMail

// SMTPSender sends through a plain SMTP relay.
type SMTPSender struct {
	addr string
	auth smtp.Auth
}

// NewSMTPSender returns a sender for host:port. Authentication is skipped
// when username is empty.
func NewSMTPSender(host, port, username, password string) *SMTPSender {
	s := &SMTPSender{addr: net.JoinHostPort(host, port)}
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

// Send ignores ctx: net/smtp has no context support.
func (s *SMTPSender) Send(_ context.Context, m Message) error {
	if err := smtpSendMail(s.addr, s.auth, m.From, []string{m.To}, buildMIME(m)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMIME(m Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	if m.HTML != "" {
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(m.HTML)
	} else {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(m.Text)
	}
	return []byte(b.String())
}
