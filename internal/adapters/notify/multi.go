package notify

import (
	"context"
	"errors"

	port "myrhythm/internal/ports/notify"
)

// Multi reparte la alarma a todos los canales. Falla si fallan todos.
type Multi []port.Notifier

func (m Multi) Notify(ctx context.Context, a port.Alarm) error {
	if len(m) == 0 {
		return nil
	}
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}
