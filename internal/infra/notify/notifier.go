package notify

import (
	"context"
	"log/slog"

	"staybook/internal/app/policies"
)

// LogNotifier records notifications in the log. Delivery by mail or push is
// owned by another service that tails these lines or replaces this type.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(ctx context.Context, to string, template string, data any) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification queued",
		slog.String("to", to),
		slog.String("template", template),
		slog.Any("data", data))
	return nil
}

var _ policies.Notifier = LogNotifier{}
