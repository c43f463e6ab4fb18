package mailer

import (
	"context"
	"log/slog"
)

// Log is a development [Sender] that writes each message to a logger
// instead of delivering it. It logs the verification code or reset link so
// the flows can be completed locally; never use it in production.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a Log sender. A nil logger uses slog.Default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Send logs msg at info level.
func (l *Log) Send(ctx context.Context, msg Message) error {
	l.logger.InfoContext(ctx, "email not sent (log mailer)",
		"kind", string(msg.Kind),
		"to", msg.To,
		"subject", msg.Subject,
		"action", msg.Action,
	)
	return nil
}
