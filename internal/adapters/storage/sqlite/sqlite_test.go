package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"myrhythm/internal/domain/doses"
	"myrhythm/internal/domain/schedule"
	"myrhythm/internal/platform/dates"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "myrhythm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seed(t *testing.T, db *sql.DB) (schedule.Registration, []schedule.DoseEvent) {
	t.Helper()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	reg := schedule.Registration{
		ID:              "reg-1",
		UserID:          "u1",
		Type:            schedule.RegiTypeSupplement,
		Label:           "Vitamins",
		MedicineNames:   []string{"D3", "Omega"},
		DoseCountPerDay: 1,
		IntakeTimes:     []string{"08:00"},
		StartDate:       dates.NewDate(2024, 1, 1),
		EndDate:         dates.NewDate(2024, 1, 2),
		MealRelation:    schedule.MealAfter,
		UseAlarm:        true,
		IssuedAt:        t0.Add(-time.Hour),
	}
	require.NoError(t, NewRegistrationsRepo(db).Create(ctx, reg))

	events := []schedule.DoseEvent{
		{ID: "e1", UserID: "u1", RegistrationID: "reg-1", MedicineName: "D3", ScheduledAt: t0, UseAlarm: true, MealRelation: schedule.MealAfter},
		{ID: "e2", UserID: "u1", RegistrationID: "reg-1", MedicineName: "Omega", ScheduledAt: t0, UseAlarm: true, MealRelation: schedule.MealAfter},
		{ID: "e3", UserID: "u1", RegistrationID: "reg-1", MedicineName: "D3", ScheduledAt: t0.Add(24 * time.Hour), UseAlarm: true, MealRelation: schedule.MealAfter},
	}
	require.NoError(t, NewDosesRepo(db).CreateBatch(ctx, events))
	return reg, events
}

func TestRegistrationsRepo_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	reg, _ := seed(t, db)
	repo := NewRegistrationsRepo(db)

	got, err := repo.GetByID(context.Background(), "reg-1")
	require.NoError(t, err)
	assert.Equal(t, reg.MedicineNames, got.MedicineNames)
	assert.Equal(t, reg.EndDate, got.EndDate)
	assert.True(t, got.UseAlarm)
	assert.True(t, reg.IssuedAt.Equal(got.IssuedAt))

	list, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDosesRepo_ListAndUpdate(t *testing.T) {
	db := openTestDB(t)
	_, events := seed(t, db)
	repo := NewDosesRepo(db)
	ctx := context.Background()
	t0 := events[0].ScheduledAt

	to := t0.Add(time.Hour)
	items, err := repo.ListByUser(ctx, "u1", doses.ListFilter{To: &to})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "D3", items[0].MedicineName)
	assert.True(t, items[0].ScheduledAt.Equal(t0))

	taken := t0.Add(time.Minute)
	require.NoError(t, repo.SetTaken(ctx, []string{"e1", "e2"}, &taken))
	require.NoError(t, repo.SetAlarm(ctx, []string{"e3"}, false))

	got, err := repo.GetByIDs(ctx, []string{"e1", "e3"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].TakenAt)
	assert.True(t, got[0].TakenAt.Equal(taken))
	assert.False(t, got[1].UseAlarm)
}

func TestDosesRepo_ListDueHonorsSnooze(t *testing.T) {
	db := openTestDB(t)
	_, events := seed(t, db)
	repo := NewDosesRepo(db)
	ctx := context.Background()
	t0 := events[0].ScheduledAt

	due, err := repo.ListDue(ctx, t0.Add(-time.Minute), t0)
	require.NoError(t, err)
	assert.Len(t, due, 2)

	until := t0.Add(15 * time.Minute)
	require.NoError(t, repo.SetSnooze(ctx, []string{"e1"}, &until))
	require.NoError(t, repo.MarkAlarmSent(ctx, []string{"e2"}, t0))

	due, err = repo.ListDue(ctx, t0.Add(-time.Minute), t0)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = repo.ListDue(ctx, t0, until)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "e1", due[0].ID)
}

func TestDelete_CascadesToDoses(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)
	ctx := context.Background()

	require.NoError(t, NewRegistrationsRepo(db).Delete(ctx, "reg-1"))

	got, err := NewDosesRepo(db).GetByIDs(ctx, []string{"e1", "e2", "e3"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.ErrorIs(t, NewRegistrationsRepo(db).Delete(ctx, "reg-1"), ErrNotFound)
}
