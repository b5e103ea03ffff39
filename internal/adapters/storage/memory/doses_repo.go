package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"myrhythm/internal/domain/doses"
	"myrhythm/internal/domain/schedule"
)

type doseRepo struct {
	mu   sync.RWMutex
	byID map[string]schedule.DoseEvent
}

func NewDoseRepo() doses.Repository {
	return &doseRepo{
		byID: make(map[string]schedule.DoseEvent),
	}
}

func (r *doseRepo) CreateBatch(ctx context.Context, events []schedule.DoseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range events {
		if e.ID == "" {
			return errors.New("dose event id required")
		}
		if _, exists := r.byID[e.ID]; exists {
			return errors.New("dose event already exists")
		}
	}
	for _, e := range events {
		r.byID[e.ID] = cloneEvent(e)
	}
	return nil
}

func (r *doseRepo) GetByIDs(ctx context.Context, ids []string) ([]schedule.DoseEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schedule.DoseEvent, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.byID[id]; ok {
			out = append(out, cloneEvent(e))
		}
	}
	return out, nil
}

func (r *doseRepo) ListByUser(ctx context.Context, userID string, filter doses.ListFilter) ([]schedule.DoseEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schedule.DoseEvent, 0)
	for _, e := range r.byID {
		if e.UserID != userID {
			continue
		}
		if filter.From != nil && e.ScheduledAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.ScheduledAt.After(*filter.To) {
			continue
		}
		out = append(out, cloneEvent(e))
	}

	sortEvents(out)
	return out, nil
}

func (r *doseRepo) ListDue(ctx context.Context, from, to time.Time) ([]schedule.DoseEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schedule.DoseEvent, 0)
	for _, e := range r.byID {
		if !e.UseAlarm || e.Taken() || e.AlarmSentAt != nil {
			continue
		}
		at := e.AlarmAt()
		if at.After(from) && !at.After(to) {
			out = append(out, cloneEvent(e))
		}
	}

	sortEvents(out)
	return out, nil
}

func (r *doseRepo) SetTaken(ctx context.Context, ids []string, takenAt *time.Time) error {
	return r.update(ids, func(e *schedule.DoseEvent) { e.TakenAt = copyTime(takenAt) })
}

func (r *doseRepo) SetAlarm(ctx context.Context, ids []string, enabled bool) error {
	return r.update(ids, func(e *schedule.DoseEvent) { e.UseAlarm = enabled })
}

// SetSnooze rearma la alarma: limpia alarm_sent_at.
func (r *doseRepo) SetSnooze(ctx context.Context, ids []string, until *time.Time) error {
	return r.update(ids, func(e *schedule.DoseEvent) {
		e.SnoozedUntil = copyTime(until)
		e.AlarmSentAt = nil
	})
}

func (r *doseRepo) MarkAlarmSent(ctx context.Context, ids []string, at time.Time) error {
	return r.update(ids, func(e *schedule.DoseEvent) { e.AlarmSentAt = copyTime(&at) })
}

func (r *doseRepo) DeleteByRegistration(ctx context.Context, registrationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.byID {
		if e.RegistrationID == registrationID {
			delete(r.byID, id)
		}
	}
	return nil
}

func (r *doseRepo) update(ids []string, fn func(e *schedule.DoseEvent)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		e, ok := r.byID[id]
		if !ok {
			continue
		}
		fn(&e)
		r.byID[id] = e
	}
	return nil
}

func sortEvents(out []schedule.DoseEvent) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].MedicineName < out[j].MedicineName
	})
}

func cloneEvent(e schedule.DoseEvent) schedule.DoseEvent {
	e.TakenAt = copyTime(e.TakenAt)
	e.SnoozedUntil = copyTime(e.SnoozedUntil)
	e.AlarmSentAt = copyTime(e.AlarmSentAt)
	return e
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
