package notify

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// LogSender writes messages to the log instead of sending them. Bodies are
// only logged at debug level.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	if log == nil {
		log = logging.Nop{}
	}
	return &LogSender{log: log.With("module", "mail")}
}

func (s *LogSender) Send(ctx context.Context, m Message) error {
	s.log.Info(ctx, "email", "to", m.To, "subject", m.Subject)
	s.log.Debug(ctx, "email body", "to", m.To, "text", m.Text, "html", m.HTML)
	return nil
}
