package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"

	"linepulse/internal/application/ports"
)

// LogNotifier writes alerts to the log instead of an external channel.
// It stands in when no bot credentials are configured.
type LogNotifier struct {
	logger *slog.Logger
	seq    atomic.Int64
}

var _ ports.NotifierPort = (*LogNotifier)(nil)

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the alert text and returns a synthetic message id
func (n *LogNotifier) Send(ctx context.Context, text string) (int64, error) {
	id := n.seq.Add(1)
	n.logger.Info("alert", "message_id", id, "text", text)
	return id, nil
}

// Pin logs the escalation
func (n *LogNotifier) Pin(ctx context.Context, messageID int64) error {
	n.logger.Info("alert pinned", "message_id", messageID)
	return nil
}
