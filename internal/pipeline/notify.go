package pipeline

import (
	"context"
	"log/slog"

	"github.com/fabianodin23-lab/senapred-monitor/internal/domain"
)

// LogNotifier announces change events through the structured log.
// Desktop and audio notification channels hang off the same Notifier
// boundary but live outside this service.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a Notifier that writes announcements to logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event domain.ChangeEvent) {
	n.logger.Info("alert "+string(event.Kind),
		"alert_id", event.AlertID,
		"summary", event.Summary,
	)
}
