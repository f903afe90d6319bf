package mailer

import (
	"context"
	"log/slog"
)

// LogMailer writes messages to the log instead of sending them. Useful for
// development and when no transport is configured.
type LogMailer struct {
	logger *slog.Logger
	from   Sender
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger, from Sender) *LogMailer {
	return &LogMailer{logger: logger, from: from}
}

func (m *LogMailer) Name() string { return "log" }

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "Email (not sent, log driver)",
		"from", m.from.String(),
		"to", msg.To,
		"subject", msg.Subject,
		"html_bytes", len(msg.HTML))
	m.logger.DebugContext(ctx, "Email body", "to", msg.To, "html", msg.HTML)
	return nil
}
