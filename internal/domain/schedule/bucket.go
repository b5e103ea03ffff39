package schedule

import (
	"sort"
	"time"
)

// Bucket agrupa las tomas de un mismo día con la misma hora programada.
type Bucket struct {
	ScheduledAt time.Time
	Status      Status
	Events      []DoseEvent
}

func (b Bucket) EventIDs() []string {
	out := make([]string, 0, len(b.Events))
	for _, e := range b.Events {
		out = append(out, e.ID)
	}
	return out
}

// AlarmOn es true si alguna toma del bucket tiene alarma.
func (b Bucket) AlarmOn() bool {
	for _, e := range b.Events {
		if e.UseAlarm {
			return true
		}
	}
	return false
}

// DeriveStatus: DONE si todas están tomadas; MISSED si ya pasó la hora y no;
// SCHEDULED en otro caso.
func DeriveStatus(events []DoseEvent, scheduledAt, now time.Time) Status {
	allTaken := len(events) > 0
	for _, e := range events {
		if !e.Taken() {
			allTaken = false
			break
		}
	}
	switch {
	case allTaken:
		return StatusDone
	case !scheduledAt.After(now):
		return StatusMissed
	default:
		return StatusScheduled
	}
}

// GroupByTime agrupa por instante idéntico y ordena ascendente.
func GroupByTime(events []DoseEvent, now time.Time) []Bucket {
	byMillis := map[int64][]DoseEvent{}
	for _, e := range events {
		k := e.ScheduledAtMillis()
		byMillis[k] = append(byMillis[k], e)
	}

	out := make([]Bucket, 0, len(byMillis))
	for _, group := range byMillis {
		at := group[0].ScheduledAt
		out = append(out, Bucket{
			ScheduledAt: at,
			Status:      DeriveStatus(group, at, now),
			Events:      group,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}
