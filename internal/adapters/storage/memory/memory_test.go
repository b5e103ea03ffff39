package memory

import (
	"context"
	"testing"
	"time"

	"myrhythm/internal/domain/doses"
	"myrhythm/internal/domain/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoseRepo_ListByUserFiltersAndSorts(t *testing.T) {
	repo := NewDoseRepo()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateBatch(ctx, []schedule.DoseEvent{
		{ID: "3", UserID: "u1", MedicineName: "B", ScheduledAt: t0},
		{ID: "1", UserID: "u1", MedicineName: "A", ScheduledAt: t0},
		{ID: "2", UserID: "u1", MedicineName: "A", ScheduledAt: t0.Add(-time.Hour)},
		{ID: "4", UserID: "u2", MedicineName: "A", ScheduledAt: t0},
	}))
	assert.Error(t, repo.CreateBatch(ctx, []schedule.DoseEvent{{ID: "1"}}))

	from := t0.Add(-30 * time.Minute)
	items, err := repo.ListByUser(ctx, "u1", doses.ListFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, "3", items[1].ID)
}

func TestDoseRepo_ReturnsCopies(t *testing.T) {
	repo := NewDoseRepo()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateBatch(ctx, []schedule.DoseEvent{{ID: "1", UserID: "u1", ScheduledAt: t0}}))
	require.NoError(t, repo.SetTaken(ctx, []string{"1"}, &t0))

	got, err := repo.GetByIDs(ctx, []string{"1", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	*got[0].TakenAt = t0.Add(time.Hour)

	again, _ := repo.GetByIDs(ctx, []string{"1"})
	assert.True(t, again[0].TakenAt.Equal(t0))
}

func TestDoseRepo_SnoozeRearmsAlarm(t *testing.T) {
	repo := NewDoseRepo()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateBatch(ctx, []schedule.DoseEvent{{ID: "1", UserID: "u1", ScheduledAt: t0, UseAlarm: true}}))
	require.NoError(t, repo.MarkAlarmSent(ctx, []string{"1"}, t0))

	due, err := repo.ListDue(ctx, t0.Add(-time.Minute), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)

	until := t0.Add(10 * time.Minute)
	require.NoError(t, repo.SetSnooze(ctx, []string{"1"}, &until))
	due, err = repo.ListDue(ctx, t0, until)
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestRegistrationRepo_CRUD(t *testing.T) {
	repo := NewRegistrationRepo()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, schedule.Registration{ID: "old", UserID: "u1", IssuedAt: t0}))
	require.NoError(t, repo.Create(ctx, schedule.Registration{ID: "new", UserID: "u1", IssuedAt: t0.Add(time.Hour)}))
	assert.Error(t, repo.Create(ctx, schedule.Registration{ID: "new"}))

	items, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "new", items[0].ID)

	require.NoError(t, repo.Delete(ctx, "old"))
	_, err = repo.GetByID(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "old"), ErrNotFound)
}
