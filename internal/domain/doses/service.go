package doses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"myrhythm/internal/domain/schedule"
	"myrhythm/internal/platform/dates"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
)

// MaxRangeDays limita las consultas por rango (read model, adherencia, exportes).
const MaxRangeDays = schedule.MaxSpanDays

type Service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo: repo,
		loc:  loc,
		now:  time.Now,
	}
}

func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) Now() time.Time { return s.now().In(s.loc) }

// SaveBatch persiste las tomas materializadas de un registro.
func (s *Service) SaveBatch(ctx context.Context, events []schedule.DoseEvent) error {
	if len(events) == 0 {
		return nil
	}
	return s.repo.CreateBatch(ctx, events)
}

func (s *Service) DeleteByRegistration(ctx context.Context, registrationID string) error {
	registrationID = strings.TrimSpace(registrationID)
	if registrationID == "" {
		return ErrInvalidInput
	}
	return s.repo.DeleteByRegistration(ctx, registrationID)
}

// ListRange devuelve las tomas del usuario entre from y to (días inclusive).
func (s *Service) ListRange(ctx context.Context, userID string, from, to dates.Date) ([]schedule.DoseEvent, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	if err := checkRange(from, to); err != nil {
		return nil, err
	}

	start := from.Midnight(s.loc)
	end := to.AddDays(1).Midnight(s.loc).Add(-time.Nanosecond)
	return s.repo.ListByUser(ctx, userID, ListFilter{From: &start, To: &end})
}

// PlansByDate es el read model del calendario: día -> tomas de ese día.
// Los días sin tomas no aparecen en el map.
func (s *Service) PlansByDate(ctx context.Context, userID string, from, to dates.Date) (map[dates.Date][]schedule.DoseEvent, error) {
	items, err := s.ListRange(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	return GroupByDate(items, s.loc), nil
}

// GroupByDate agrupa tomas por día de calendario en loc, preservando el orden.
func GroupByDate(events []schedule.DoseEvent, loc *time.Location) map[dates.Date][]schedule.DoseEvent {
	out := map[dates.Date][]schedule.DoseEvent{}
	for _, e := range events {
		d := e.Date(loc)
		out[d] = append(out[d], e)
	}
	return out
}

// Apply ejecuta un comando. Sólo toca tomas del dueño del comando.
func (s *Service) Apply(ctx context.Context, cmd Command) error {
	if cmd == nil {
		return ErrInvalidInput
	}
	ids := cleanIDs(cmd.Targets())
	if strings.TrimSpace(cmd.Owner()) == "" || len(ids) == 0 {
		return ErrInvalidInput
	}

	found, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if len(found) == 0 {
		return ErrNotFound
	}
	for _, e := range found {
		if e.UserID != cmd.Owner() {
			return ErrForbidden
		}
	}

	owned := make([]string, 0, len(found))
	for _, e := range found {
		owned = append(owned, e.ID)
	}

	switch c := cmd.(type) {
	case ToggleAlarm:
		return s.repo.SetAlarm(ctx, owned, c.Enabled)
	case MarkTaken:
		at := c.At
		if at.IsZero() {
			at = s.Now()
		}
		return s.repo.SetTaken(ctx, owned, &at)
	case Snooze:
		if c.Until.IsZero() {
			return s.repo.SetSnooze(ctx, owned, nil)
		}
		until := c.Until
		return s.repo.SetSnooze(ctx, owned, &until)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

func (s *Service) ListDue(ctx context.Context, from, to time.Time) ([]schedule.DoseEvent, error) {
	return s.repo.ListDue(ctx, from, to)
}

func (s *Service) MarkAlarmSent(ctx context.Context, ids []string, at time.Time) error {
	ids = cleanIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	return s.repo.MarkAlarmSent(ctx, ids, at)
}

func checkRange(from, to dates.Date) error {
	if from.IsZero() || to.IsZero() {
		return ErrInvalidInput
	}
	if to.Before(from) {
		return ErrInvalidInput
	}
	if from.DaysUntil(to) >= MaxRangeDays {
		return ErrInvalidInput
	}
	return nil
}

func cleanIDs(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
