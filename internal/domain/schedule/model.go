package schedule

import (
	"time"

	"myrhythm/internal/platform/dates"
)

// Registration es la definición de un tratamiento o suplemento tal como la
// envía el usuario. Después de materializar, StartDate/EndDate quedan con el
// rango efectivo (incluye el rollover).
type Registration struct {
	ID     string
	UserID string

	Type  RegiType
	Label string

	MedicineNames   []string
	DoseCountPerDay int
	IntakeTimes     []string // "HH:MM"

	StartDate dates.Date
	EndDate   dates.Date
	DayCount  int // alternativa a EndDate; 0 = no usado

	MealRelation MealRelation
	Memo         string
	UseAlarm     bool

	IssuedAt time.Time
}

// DoseEvent es una toma concreta: tomar MedicineName a ScheduledAt.
type DoseEvent struct {
	ID             string
	UserID         string
	RegistrationID string // back-reference, no ownership

	Label        string
	MedicineName string
	ScheduledAt  time.Time

	MealRelation MealRelation
	Memo         string
	UseAlarm     bool

	TakenAt      *time.Time // nil hasta marcar tomada
	SnoozedUntil *time.Time
	AlarmSentAt  *time.Time
}

func (e DoseEvent) Taken() bool { return e.TakenAt != nil }

func (e DoseEvent) ScheduledAtMillis() int64 {
	return dates.ToEpochMillis(e.ScheduledAt)
}

// Date es el día de calendario de la toma en loc.
func (e DoseEvent) Date(loc *time.Location) dates.Date {
	return dates.DateOf(e.ScheduledAt.In(loc))
}

// AlarmAt es el momento en que corresponde avisar: la hora programada o el snooze.
func (e DoseEvent) AlarmAt() time.Time {
	if e.SnoozedUntil != nil && e.SnoozedUntil.After(e.ScheduledAt) {
		return *e.SnoozedUntil
	}
	return e.ScheduledAt
}

// Plan es el resultado de materializar una Registration.
type Plan struct {
	Registration Registration
	Events       []DoseEvent

	// RolledOver indica que el último día ya había pasado y se extendió un día.
	RolledOver bool
}
