package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the structured log. It is the sink used
// when no other sink is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (LogNotifier) SinkName() string { return "log" }

func (l LogNotifier) Deliver(_ context.Context, msg Message) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("live notification",
		slog.String("provider", msg.Provider),
		slog.String("streamer", msg.Streamer),
		slog.String("url", msg.URL),
		slog.String("text", PlainText(msg)))
	return nil
}
