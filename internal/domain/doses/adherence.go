package doses

import (
	"context"
	"time"

	"myrhythm/internal/domain/schedule"
	"myrhythm/internal/platform/dates"
)

type Counts struct {
	Scheduled int `json:"scheduled"`
	Taken     int `json:"taken"`
	Missed    int `json:"missed"`
	Upcoming  int `json:"upcoming"`
}

// Rate es tomadas / vencidas (tomadas + perdidas). 0 si no hay vencidas.
func (c Counts) Rate() float64 {
	due := c.Taken + c.Missed
	if due == 0 {
		return 0
	}
	return float64(c.Taken) / float64(due)
}

func (c *Counts) add(e schedule.DoseEvent, now time.Time) {
	c.Scheduled++
	switch {
	case e.Taken():
		c.Taken++
	case !e.ScheduledAt.After(now):
		c.Missed++
	default:
		c.Upcoming++
	}
}

type DayAdherence struct {
	Date dates.Date
	Counts
}

type Adherence struct {
	From dates.Date
	To   dates.Date
	Counts
	Days []DayAdherence
}

// Adherence resume el historial de tomas del rango, día por día.
func (s *Service) Adherence(ctx context.Context, userID string, from, to dates.Date) (Adherence, error) {
	items, err := s.ListRange(ctx, userID, from, to)
	if err != nil {
		return Adherence{}, err
	}
	return Summarize(items, from, to, s.Now()), nil
}

// Summarize cuenta por día en la zona de now; los días sin tomas quedan en cero.
func Summarize(events []schedule.DoseEvent, from, to dates.Date, now time.Time) Adherence {
	loc := now.Location()
	days := dates.DayRange(from, to, loc)

	idx := make(map[dates.Date]int, len(days))
	out := Adherence{
		From: from,
		To:   to,
		Days: make([]DayAdherence, len(days)),
	}
	for i, d := range days {
		idx[d] = i
		out.Days[i].Date = d
	}

	for _, e := range events {
		i, ok := idx[e.Date(loc)]
		if !ok {
			continue
		}
		out.Days[i].add(e, now)
		out.Counts.add(e, now)
	}
	return out
}
