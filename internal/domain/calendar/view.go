package calendar

import (
	"time"

	"myrhythm/internal/domain/schedule"
	"myrhythm/internal/platform/dates"
)

// Buckets agrupa las tomas del día seleccionado por hora exacta.
// Si el día no está en el map devuelve una lista vacía ("sin agenda").
func (s *State) Buckets(eventsByDate map[dates.Date][]schedule.DoseEvent, now time.Time) []schedule.Bucket {
	events, ok := eventsByDate[s.selected]
	if !ok || len(events) == 0 {
		return []schedule.Bucket{}
	}
	return schedule.GroupByTime(events, now)
}

type DaySummary struct {
	Date     dates.Date
	Total    int
	Taken    int
	Status   schedule.Status // vacío si el día no tiene tomas
	Today    bool
	Selected bool
}

type WeekView struct {
	Page     int
	Anchor   dates.Date
	Today    dates.Date
	Selected dates.Date
	Days     [7]DaySummary
	Buckets  []schedule.Bucket
}

// Empty indica que el día seleccionado no tiene agenda.
func (v WeekView) Empty() bool { return len(v.Buckets) == 0 }

// View proyecta el estado y el read model a algo serializable.
func (s *State) View(eventsByDate map[dates.Date][]schedule.DoseEvent, now time.Time) WeekView {
	v := WeekView{
		Page:     s.page,
		Anchor:   s.anchor,
		Today:    s.today,
		Selected: s.selected,
		Buckets:  s.Buckets(eventsByDate, now),
	}
	for i, d := range s.WeekDays() {
		v.Days[i] = summarizeDay(d, eventsByDate[d], now)
		v.Days[i].Today = d == s.today
		v.Days[i].Selected = d == s.selected
	}
	return v
}

// summarizeDay: MISSED si algún bucket quedó perdido, DONE si todos están
// tomados, si no SCHEDULED.
func summarizeDay(d dates.Date, events []schedule.DoseEvent, now time.Time) DaySummary {
	out := DaySummary{Date: d, Total: len(events)}
	if len(events) == 0 {
		return out
	}
	for _, e := range events {
		if e.Taken() {
			out.Taken++
		}
	}

	out.Status = schedule.StatusDone
	for _, b := range schedule.GroupByTime(events, now) {
		switch b.Status {
		case schedule.StatusMissed:
			out.Status = schedule.StatusMissed
			return out
		case schedule.StatusScheduled:
			out.Status = schedule.StatusScheduled
		}
	}
	return out
}
