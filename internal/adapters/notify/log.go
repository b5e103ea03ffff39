package notify

import (
	"context"
	"strings"

	"myrhythm/internal/platform/logger"
	port "myrhythm/internal/ports/notify"
)

// LogNotifier sólo loguea la alarma. Es el default cuando no hay canales.
type LogNotifier struct {
	log logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &LogNotifier{log: log.With(map[string]any{"notifier": "log"})}
}

func (n *LogNotifier) Notify(ctx context.Context, a port.Alarm) error {
	n.log.Info("dose alarm", map[string]any{
		"user":         a.UserID,
		"scheduled_at": a.ScheduledAt,
		"medicines":    strings.Join(a.Medicines, ","),
		"events":       len(a.EventIDs),
		"snoozed":      a.Snoozed,
	})
	return nil
}
