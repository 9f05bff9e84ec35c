package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes events to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, e Event) error {
	n.logger.InfoContext(ctx, "notification",
		"kind", e.Kind,
		"subject_id", e.SubjectID,
		"recipient", e.Recipient,
		"message", e.Message,
	)

	return nil
}
