package doses

import (
	"fmt"
	"strings"
	"time"

	"myrhythm/internal/domain/schedule"

	ics "github.com/arran4/golang-ical"
)

// doseEventLength es la duración con la que se publica cada toma en el feed.
const doseEventLength = 15 * time.Minute

// CalendarICS serializa las tomas como VEVENTs. Las tomas con alarma llevan un
// VALARM de display a la hora programada.
func CalendarICS(events []schedule.DoseEvent, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//myrhythm//doses//KO")

	for _, e := range events {
		ve := cal.AddEvent(e.ID + "@myrhythm")
		ve.SetDtStampTime(now.UTC())
		ve.SetStartAt(e.ScheduledAt.UTC())
		ve.SetEndAt(e.ScheduledAt.Add(doseEventLength).UTC())
		ve.SetSummary(eventSummary(e))
		if d := eventDescription(e); d != "" {
			ve.SetDescription(d)
		}
		if e.Taken() {
			ve.SetStatus(ics.ObjectStatusCompleted)
		} else {
			ve.SetStatus(ics.ObjectStatusConfirmed)
		}
		if e.UseAlarm && !e.Taken() {
			alarm := ve.AddAlarm()
			alarm.SetAction(ics.ActionDisplay)
			alarm.SetTrigger("-PT0M")
		}
	}
	return cal.Serialize()
}

func eventSummary(e schedule.DoseEvent) string {
	if label := strings.TrimSpace(e.Label); label != "" {
		return fmt.Sprintf("%s (%s)", e.MedicineName, label)
	}
	return e.MedicineName
}

func eventDescription(e schedule.DoseEvent) string {
	var parts []string
	switch e.MealRelation {
	case schedule.MealBefore:
		parts = append(parts, "before meal")
	case schedule.MealAfter:
		parts = append(parts, "after meal")
	}
	if memo := strings.TrimSpace(e.Memo); memo != "" {
		parts = append(parts, memo)
	}
	return strings.Join(parts, "\n")
}
