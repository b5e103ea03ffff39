package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_WeekStart_IsSunday(t *testing.T) {
	// 2024-01-03 es miércoles
	d := NewDate(2024, time.January, 3)
	ws := d.WeekStart()

	assert.Equal(t, NewDate(2023, time.December, 31), ws)
	assert.Equal(t, time.Sunday, ws.Weekday())

	week := d.Week()
	assert.Equal(t, ws, week[0])
	assert.Equal(t, NewDate(2024, time.January, 6), week[6])
	assert.True(t, d.SameWeek(week[6]))
	assert.False(t, d.SameWeek(week[6].AddDays(1)))
}

func TestDate_Sunday_IsItsOwnWeekStart(t *testing.T) {
	d := NewDate(2024, time.January, 7)
	assert.Equal(t, d, d.WeekStart())
}

func TestDayRange_Inclusive(t *testing.T) {
	loc, err := LoadZone("Asia/Seoul")
	require.NoError(t, err)

	days := DayRange(NewDate(2024, time.February, 27), NewDate(2024, time.March, 1), loc)
	require.Len(t, days, 4)
	assert.Equal(t, NewDate(2024, time.February, 29), days[2])
	assert.Equal(t, NewDate(2024, time.March, 1), days[3])
}

func TestDayRange_SingleDay_And_Inverted(t *testing.T) {
	d := NewDate(2024, time.January, 1)
	assert.Equal(t, []Date{d}, DayRange(d, d, time.UTC))
	assert.Nil(t, DayRange(d, d.AddDays(-1), time.UTC))
}

func TestDayRange_AcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	days := DayRange(NewDate(2024, time.March, 9), NewDate(2024, time.March, 11), loc)
	assert.Equal(t, []Date{
		NewDate(2024, time.March, 9),
		NewDate(2024, time.March, 10),
		NewDate(2024, time.March, 11),
	}, days)
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("08:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 8, Minute: 5}, tod)
	assert.Equal(t, "08:05", tod.String())

	tod, err = ParseTimeOfDay(" 7:30 ")
	require.NoError(t, err)
	assert.Equal(t, 7*60+30, tod.Minutes())

	for _, bad := range []string{"", "25:00", "aa:bb", "8"} {
		_, err := ParseTimeOfDay(bad)
		assert.ErrorIs(t, err, ErrInvalidTime, bad)
	}
}

func TestEpochMillis_RoundTrip(t *testing.T) {
	loc, err := LoadZone("")
	require.NoError(t, err)

	at := NewDate(2024, time.January, 1).At(TimeOfDay{Hour: 8}, loc)
	ms := ToEpochMillis(at)
	assert.Equal(t, int64(1704063600000), ms)
	assert.True(t, at.Equal(FromEpochMillis(ms, loc)))
}

func TestDate_TextRoundTrip(t *testing.T) {
	d, err := ParseDate("2024-12-31")
	require.NoError(t, err)

	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2024-12-31", string(b))

	var back Date
	require.NoError(t, back.UnmarshalText(b))
	assert.Equal(t, d, back)

	_, err = ParseDate("2024-13-01")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestDate_DaysUntil(t *testing.T) {
	a := NewDate(2024, time.January, 30)
	assert.Equal(t, 3, a.DaysUntil(NewDate(2024, time.February, 2)))
	assert.Equal(t, -3, NewDate(2024, time.February, 2).DaysUntil(a))
}
