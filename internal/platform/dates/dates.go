// Package dates contiene las utilidades de calendario compartidas por el
// materializador de dosis y el calendario semanal: fechas sin hora, horas del
// día "HH:MM", milisegundos epoch y semanas que empiezan en domingo.
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	// DefaultZone es la zona fija de la app.
	DefaultZone = "Asia/Seoul"
)

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrInvalidTime = errors.New("invalid time of day")
)

// Date es un día de calendario sin hora ni zona. Es comparable y sirve como key de map.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normaliza (2024, 1, 32) => 2024-02-01.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// DateOf toma el día de t en su propia location.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Today es el día actual de now en loc.
func Today(now time.Time, loc *time.Location) Date {
	return DateOf(now.In(loc))
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Midnight devuelve las 00:00 de d en loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At combina el día con una hora local.
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, tod.Hour, tod.Minute, 0, 0, loc)
}

func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

func (d Date) Weekday() time.Weekday {
	return d.Midnight(time.UTC).Weekday()
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// DaysUntil cuenta los días de d a o (negativo si o es anterior).
func (d Date) DaysUntil(o Date) int {
	return int(o.Midnight(time.UTC).Sub(d.Midnight(time.UTC)).Hours() / 24)
}

// WeekStart es el domingo de la semana de d.
func (d Date) WeekStart() Date {
	return d.AddDays(-int(d.Weekday()))
}

// Week devuelve los 7 días (domingo a sábado) de la semana de d.
func (d Date) Week() [7]Date {
	var out [7]Date
	start := d.WeekStart()
	for i := range out {
		out[i] = start.AddDays(i)
	}
	return out
}

// SameWeek compara las semanas domingo-sábado de ambos días.
func (d Date) SameWeek(o Date) bool {
	return d.WeekStart() == o.WeekStart()
}

// DayRange enumera [start, end] paso diario, vía una RRULE FREQ=DAILY en loc.
// Si end < start devuelve nil.
func DayRange(start, end Date, loc *time.Location) []Date {
	if end.Before(start) {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: start.Midnight(loc),
		Until:   end.Midnight(loc),
	})
	if err != nil {
		// ROption con Freq fijo no falla; fallback manual igual.
		out := make([]Date, 0, start.DaysUntil(end)+1)
		for d := start; !d.After(end); d = d.AddDays(1) {
			out = append(out, d)
		}
		return out
	}

	occ := r.All()
	out := make([]Date, 0, len(occ))
	for _, t := range occ {
		out = append(out, DateOf(t.In(loc)))
	}
	return out
}

// TimeOfDay es una hora local "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay acepta "H:MM" y "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimeOfDay{}, ErrInvalidTime
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		t, err = time.Parse("3:04", s)
		if err != nil {
			return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes desde medianoche; útil para ordenar.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

// ToEpochMillis convierte a milisegundos epoch.
func ToEpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromEpochMillis devuelve el instante en loc.
func FromEpochMillis(ms int64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ms).In(loc)
}

// LoadZone carga una zona IANA; vacío => DefaultZone.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultZone
	}
	return time.LoadLocation(name)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
