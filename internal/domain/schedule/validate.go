package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"myrhythm/internal/platform/dates"
)

var ErrInvalidInput = errors.New("invalid input")

// ValidationError lista los campos rechazados (campo -> motivo).
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid registration: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Validate rechaza registros que el materializador degradaría en silencio.
func Validate(reg Registration) error {
	fields := map[string]string{}

	if strings.TrimSpace(reg.UserID) == "" {
		fields["user_id"] = "required"
	}
	if !reg.Type.Valid() {
		fields["regi_type"] = "must be disease or supplement"
	}
	if len(cleanNames(reg.MedicineNames)) == 0 {
		fields["medicine_names"] = "at least one non-blank name required"
	}
	if reg.DoseCountPerDay < MinDosesPerDay || reg.DoseCountPerDay > MaxDosesPerDay {
		fields["dose_count_per_day"] = fmt.Sprintf("must be between %d and %d", MinDosesPerDay, MaxDosesPerDay)
	}

	if len(reg.IntakeTimes) != reg.DoseCountPerDay {
		fields["intake_times"] = "length must match dose_count_per_day"
	} else {
		seen := map[string]struct{}{}
		for _, s := range reg.IntakeTimes {
			tod, err := dates.ParseTimeOfDay(s)
			if err != nil {
				fields["intake_times"] = fmt.Sprintf("invalid time %q", s)
				break
			}
			if _, dup := seen[tod.String()]; dup {
				fields["intake_times"] = fmt.Sprintf("duplicated time %q", tod.String())
				break
			}
			seen[tod.String()] = struct{}{}
		}
	}

	if !reg.StartDate.IsZero() && !reg.EndDate.IsZero() && reg.EndDate.Before(reg.StartDate) {
		fields["end_date"] = "must not be before start_date"
	}
	if !reg.StartDate.IsZero() && !reg.EndDate.IsZero() && !reg.EndDate.Before(reg.StartDate) &&
		reg.StartDate.DaysUntil(reg.EndDate)+1 > MaxSpanDays {
		fields["end_date"] = fmt.Sprintf("span must not exceed %d days", MaxSpanDays)
	}
	if reg.DayCount < 0 {
		fields["day_count"] = "must not be negative"
	} else if reg.DayCount > MaxSpanDays {
		fields["day_count"] = fmt.Sprintf("must not exceed %d", MaxSpanDays)
	}
	if reg.MealRelation != "" && !reg.MealRelation.Valid() {
		fields["meal_relation"] = "must be before, after or none"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
