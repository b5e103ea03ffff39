package doses

import (
	"context"
	"time"

	"myrhythm/internal/domain/schedule"
)

type Repository interface {
	CreateBatch(ctx context.Context, events []schedule.DoseEvent) error
	GetByIDs(ctx context.Context, ids []string) ([]schedule.DoseEvent, error)
	ListByUser(ctx context.Context, userID string, filter ListFilter) ([]schedule.DoseEvent, error)

	// ListDue devuelve tomas con alarma, sin tomar ni avisar, cuyo AlarmAt cae en (from, to].
	ListDue(ctx context.Context, from, to time.Time) ([]schedule.DoseEvent, error)

	SetTaken(ctx context.Context, ids []string, takenAt *time.Time) error
	SetAlarm(ctx context.Context, ids []string, enabled bool) error
	SetSnooze(ctx context.Context, ids []string, until *time.Time) error
	MarkAlarmSent(ctx context.Context, ids []string, at time.Time) error

	DeleteByRegistration(ctx context.Context, registrationID string) error
}

// ListFilter: From/To sobre scheduled_at, ambos inclusive.
type ListFilter struct {
	From *time.Time
	To   *time.Time
}
