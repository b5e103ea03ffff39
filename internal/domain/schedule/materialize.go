package schedule

import (
	"strings"
	"time"

	"myrhythm/internal/platform/dates"

	"github.com/google/uuid"
)

// Materializer expande una Registration en DoseEvents, uno por
// (día × hora de toma × medicamento), en una zona horaria fija.
type Materializer struct {
	loc   *time.Location
	newID func() string
}

func NewMaterializer(loc *time.Location) *Materializer {
	if loc == nil {
		loc = time.UTC
	}
	return &Materializer{
		loc:   loc,
		newID: uuid.NewString,
	}
}

func (m *Materializer) Location() *time.Location { return m.loc }

// Materialize no valida: entradas incompletas producen un plan vacío o parcial.
// La validación estricta vive en Validate y la aplica el servicio antes de llamar acá.
func (m *Materializer) Materialize(reg Registration, now time.Time) Plan {
	now = now.In(m.loc)

	count := clampDoseCount(reg.DoseCountPerDay)
	times := parseTimes(resizeTimes(reg.IntakeTimes, count))
	meds := cleanNames(reg.MedicineNames)

	start := reg.StartDate
	if start.IsZero() {
		start = dates.Today(now, m.loc)
	}
	end := reg.EndDate
	if end.IsZero() {
		end = start
		if reg.DayCount > 0 {
			end = start.AddDays(reg.DayCount - 1)
		}
	}
	if end.Before(start) {
		end = start
	}

	// Rollover: si todas las tomas del último día ya pasaron, se extiende un día.
	rolled := false
	if len(times) > 0 && allPassed(end, times, now, m.loc) {
		end = end.AddDays(1)
		rolled = true
	}

	if reg.ID == "" {
		reg.ID = m.newID()
	}
	if reg.MealRelation == "" {
		reg.MealRelation = MealNone
	}
	reg.Label = strings.TrimSpace(reg.Label)
	reg.Memo = strings.TrimSpace(reg.Memo)
	reg.MedicineNames = meds
	reg.DoseCountPerDay = count
	reg.IntakeTimes = formatTimes(times)
	reg.StartDate = start
	reg.EndDate = end
	reg.DayCount = start.DaysUntil(end) + 1
	reg.IssuedAt = now

	span := start.DaysUntil(end)
	days := dates.DayRange(start, end, m.loc)

	events := make([]DoseEvent, 0, len(days)*len(times)*len(meds))
	for _, day := range days {
		for _, tod := range times {
			at := day.At(tod, m.loc)
			// Primer día: una toma que ya pasó se corre al día siguiente del fin.
			if day == start && !at.After(now) {
				at = day.AddDays(span+1).At(tod, m.loc)
			}
			for _, med := range meds {
				events = append(events, DoseEvent{
					ID:             m.newID(),
					UserID:         reg.UserID,
					RegistrationID: reg.ID,
					Label:          reg.Label,
					MedicineName:   med,
					ScheduledAt:    at,
					MealRelation:   reg.MealRelation,
					Memo:           reg.Memo,
					UseAlarm:       reg.UseAlarm,
				})
			}
		}
	}

	return Plan{
		Registration: reg,
		Events:       events,
		RolledOver:   rolled,
	}
}

func clampDoseCount(n int) int {
	if n < MinDosesPerDay {
		return MinDosesPerDay
	}
	if n > MaxDosesPerDay {
		return MaxDosesPerDay
	}
	return n
}

// resizeTimes rellena con slots vacíos o trunca desde el final.
func resizeTimes(in []string, n int) []string {
	out := make([]string, n)
	copy(out, in)
	return out
}

// parseTimes descarta lo que no parsea (incluidos los slots vacíos).
func parseTimes(in []string) []dates.TimeOfDay {
	out := make([]dates.TimeOfDay, 0, len(in))
	for _, s := range in {
		tod, err := dates.ParseTimeOfDay(s)
		if err != nil {
			continue
		}
		out = append(out, tod)
	}
	return out
}

func formatTimes(in []dates.TimeOfDay) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		out = append(out, t.String())
	}
	return out
}

func cleanNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

func allPassed(day dates.Date, times []dates.TimeOfDay, now time.Time, loc *time.Location) bool {
	for _, tod := range times {
		if day.At(tod, loc).After(now) {
			return false
		}
	}
	return true
}
