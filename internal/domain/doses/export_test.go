package doses

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"myrhythm/internal/domain/schedule"
	"myrhythm/internal/platform/dates"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAdherenceXLSX_RowsAndTotal(t *testing.T) {
	a := Adherence{
		From:   dates.NewDate(2024, 1, 1),
		To:     dates.NewDate(2024, 1, 2),
		Counts: Counts{Scheduled: 4, Taken: 3, Missed: 1},
		Days: []DayAdherence{
			{Date: dates.NewDate(2024, 1, 1), Counts: Counts{Scheduled: 2, Taken: 2}},
			{Date: dates.NewDate(2024, 1, 2), Counts: Counts{Scheduled: 2, Taken: 1, Missed: 1}},
		},
	}

	b, err := AdherenceXLSX(a)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(adherenceSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, adherenceHeader, rows[0])
	assert.Equal(t, "2024-01-01", rows[1][0])
	assert.Equal(t, "2", rows[1][2])
	assert.Equal(t, "Total", rows[3][0])
	assert.Equal(t, "4", rows[3][1])
}

func TestCalendarICS_OneEventPerDose(t *testing.T) {
	loc := seoul(t)
	now := time.Date(2024, 1, 1, 7, 0, 0, 0, loc)
	taken := now

	e1 := dose("e1", "u1", time.Date(2024, 1, 1, 8, 0, 0, 0, loc))
	e1.Label = "Cold"
	e1.MealRelation = schedule.MealAfter
	e2 := dose("e2", "u1", time.Date(2024, 1, 1, 20, 0, 0, 0, loc))
	e2.TakenAt = &taken

	out := CalendarICS([]schedule.DoseEvent{e1, e2}, now)

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2)

	assert.Equal(t, "e1@myrhythm", events[0].Id())
	assert.Equal(t, "A (Cold)", events[0].GetProperty(ics.ComponentPropertySummary).Value)

	start, err := events[0].GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(e1.ScheduledAt))

	assert.Contains(t, out, "BEGIN:VALARM")
	assert.Equal(t, 1, strings.Count(out, "BEGIN:VALARM"), "taken doses carry no alarm")
}
