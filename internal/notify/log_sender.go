package notify

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of sending them. Used when no mail provider is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{log: logger}
}

func (s *LogSender) SendEmail(_ context.Context, msg Message) error {
	s.log.Info("email not sent, no provider configured", "to", msg.To, "subject", msg.Subject, "bytes", len(msg.HTML))
	return nil
}

func (s *LogSender) Alert(_ context.Context, text string) error {
	s.log.Info("staff alert not sent, no channel configured", "text", text)
	return nil
}
