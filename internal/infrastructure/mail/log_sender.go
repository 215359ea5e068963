package mail

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender records messages instead of delivering them. It is used when no
// SMTP relay is configured. Bodies are not logged since they carry secrets.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("template", msg.Template).
		Int("body_bytes", len(msg.HTMLBody)).
		Msg("email not delivered, no SMTP relay configured")
	return nil
}
