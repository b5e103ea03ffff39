package doses

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"myrhythm/internal/domain/schedule"
	"myrhythm/internal/platform/dates"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	mu   sync.Mutex
	byID map[string]schedule.DoseEvent
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]schedule.DoseEvent{}}
}

func (r *testRepo) CreateBatch(ctx context.Context, events []schedule.DoseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		if e.ID == "" {
			return errors.New("repo: id required")
		}
		r.byID[e.ID] = e
	}
	return nil
}

func (r *testRepo) GetByIDs(ctx context.Context, ids []string) ([]schedule.DoseEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []schedule.DoseEvent{}
	for _, id := range ids {
		if e, ok := r.byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *testRepo) ListByUser(ctx context.Context, userID string, f ListFilter) ([]schedule.DoseEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []schedule.DoseEvent{}
	for _, e := range r.byID {
		if e.UserID != userID {
			continue
		}
		if f.From != nil && e.ScheduledAt.Before(*f.From) {
			continue
		}
		if f.To != nil && e.ScheduledAt.After(*f.To) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (r *testRepo) ListDue(ctx context.Context, from, to time.Time) ([]schedule.DoseEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []schedule.DoseEvent{}
	for _, e := range r.byID {
		at := e.AlarmAt()
		if e.UseAlarm && !e.Taken() && e.AlarmSentAt == nil && at.After(from) && !at.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *testRepo) update(ids []string, fn func(e *schedule.DoseEvent)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		e, ok := r.byID[id]
		if !ok {
			continue
		}
		fn(&e)
		r.byID[id] = e
	}
	return nil
}

func (r *testRepo) SetTaken(ctx context.Context, ids []string, takenAt *time.Time) error {
	return r.update(ids, func(e *schedule.DoseEvent) { e.TakenAt = takenAt })
}

func (r *testRepo) SetAlarm(ctx context.Context, ids []string, enabled bool) error {
	return r.update(ids, func(e *schedule.DoseEvent) { e.UseAlarm = enabled })
}

func (r *testRepo) SetSnooze(ctx context.Context, ids []string, until *time.Time) error {
	return r.update(ids, func(e *schedule.DoseEvent) {
		e.SnoozedUntil = until
		e.AlarmSentAt = nil
	})
}

func (r *testRepo) MarkAlarmSent(ctx context.Context, ids []string, at time.Time) error {
	return r.update(ids, func(e *schedule.DoseEvent) { e.AlarmSentAt = &at })
}

func (r *testRepo) DeleteByRegistration(ctx context.Context, registrationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.byID {
		if e.RegistrationID == registrationID {
			delete(r.byID, id)
		}
	}
	return nil
}

func (r *testRepo) get(id string) schedule.DoseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id]
}

// -------------------------
// Helpers
// -------------------------

func seoul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	return loc
}

func newTestService(t *testing.T, now time.Time) (*Service, *testRepo) {
	t.Helper()
	repo := newTestRepo()
	svc := NewService(repo, now.Location())
	svc.now = func() time.Time { return now }
	return svc, repo
}

func dose(id, user string, at time.Time) schedule.DoseEvent {
	return schedule.DoseEvent{
		ID:             id,
		UserID:         user,
		RegistrationID: "reg-1",
		MedicineName:   "A",
		ScheduledAt:    at,
		MealRelation:   schedule.MealNone,
		UseAlarm:       true,
	}
}

// -------------------------
// Tests
// -------------------------

func TestPlansByDate_GroupsByCalendarDay(t *testing.T) {
	loc := seoul(t)
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, loc)
	svc, _ := newTestService(t, now)
	ctx := context.Background()

	require.NoError(t, svc.SaveBatch(ctx, []schedule.DoseEvent{
		dose("e1", "u1", time.Date(2024, 1, 1, 8, 0, 0, 0, loc)),
		dose("e2", "u1", time.Date(2024, 1, 1, 20, 0, 0, 0, loc)),
		dose("e3", "u1", time.Date(2024, 1, 3, 8, 0, 0, 0, loc)),
		dose("e4", "u2", time.Date(2024, 1, 1, 8, 0, 0, 0, loc)),
		dose("e5", "u1", time.Date(2024, 1, 9, 8, 0, 0, 0, loc)),
	}))

	byDate, err := svc.PlansByDate(ctx, "u1", dates.NewDate(2024, 1, 1), dates.NewDate(2024, 1, 7))
	require.NoError(t, err)

	require.Len(t, byDate, 2)
	assert.Len(t, byDate[dates.NewDate(2024, 1, 1)], 2)
	assert.Len(t, byDate[dates.NewDate(2024, 1, 3)], 1)
	_, ok := byDate[dates.NewDate(2024, 1, 2)]
	assert.False(t, ok, "days without doses are absent")
}

func TestListRange_RejectsBadRanges(t *testing.T) {
	svc, _ := newTestService(t, time.Now())
	ctx := context.Background()

	_, err := svc.ListRange(ctx, "u1", dates.NewDate(2024, 1, 5), dates.NewDate(2024, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.ListRange(ctx, "u1", dates.NewDate(2024, 1, 1), dates.NewDate(2025, 6, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.ListRange(ctx, " ", dates.NewDate(2024, 1, 1), dates.NewDate(2024, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestApply_MarkTakenDefaultsToNow(t *testing.T) {
	loc := seoul(t)
	now := time.Date(2024, 1, 1, 8, 5, 0, 0, loc)
	svc, repo := newTestService(t, now)
	ctx := context.Background()

	at := time.Date(2024, 1, 1, 8, 0, 0, 0, loc)
	require.NoError(t, svc.SaveBatch(ctx, []schedule.DoseEvent{dose("e1", "u1", at), dose("e2", "u1", at)}))

	require.NoError(t, svc.Apply(ctx, MarkTaken{UserID: "u1", EventIDs: []string{"e1", "e2", "e1", " "}}))

	for _, id := range []string{"e1", "e2"} {
		e := repo.get(id)
		require.NotNil(t, e.TakenAt)
		assert.True(t, e.TakenAt.Equal(now))
	}
}

func TestApply_ToggleAlarmAndSnooze(t *testing.T) {
	loc := seoul(t)
	now := time.Date(2024, 1, 1, 7, 0, 0, 0, loc)
	svc, repo := newTestService(t, now)
	ctx := context.Background()

	require.NoError(t, svc.SaveBatch(ctx, []schedule.DoseEvent{dose("e1", "u1", now.Add(time.Hour))}))

	require.NoError(t, svc.Apply(ctx, ToggleAlarm{UserID: "u1", EventIDs: []string{"e1"}, Enabled: false}))
	assert.False(t, repo.get("e1").UseAlarm)

	until := now.Add(90 * time.Minute)
	require.NoError(t, svc.Apply(ctx, Snooze{UserID: "u1", EventIDs: []string{"e1"}, Until: until}))
	require.NotNil(t, repo.get("e1").SnoozedUntil)
	assert.True(t, repo.get("e1").AlarmAt().Equal(until))

	require.NoError(t, svc.Apply(ctx, Snooze{UserID: "u1", EventIDs: []string{"e1"}}))
	assert.Nil(t, repo.get("e1").SnoozedUntil)
}

func TestApply_ForeignEventsAreForbidden(t *testing.T) {
	loc := seoul(t)
	now := time.Date(2024, 1, 1, 7, 0, 0, 0, loc)
	svc, repo := newTestService(t, now)
	ctx := context.Background()

	require.NoError(t, svc.SaveBatch(ctx, []schedule.DoseEvent{
		dose("mine", "u1", now),
		dose("theirs", "u2", now),
	}))

	err := svc.Apply(ctx, MarkTaken{UserID: "u1", EventIDs: []string{"mine", "theirs"}})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.False(t, repo.get("mine").Taken(), "nothing applied on a mixed batch")
	assert.False(t, repo.get("theirs").Taken())
}

func TestApply_InvalidAndMissing(t *testing.T) {
	svc, _ := newTestService(t, time.Now())
	ctx := context.Background()

	assert.ErrorIs(t, svc.Apply(ctx, nil), ErrInvalidInput)
	assert.ErrorIs(t, svc.Apply(ctx, MarkTaken{UserID: "u1"}), ErrInvalidInput)
	assert.ErrorIs(t, svc.Apply(ctx, MarkTaken{EventIDs: []string{"x"}}), ErrInvalidInput)
	assert.ErrorIs(t, svc.Apply(ctx, MarkTaken{UserID: "u1", EventIDs: []string{"missing"}}), ErrNotFound)
}

func TestDeleteByRegistration(t *testing.T) {
	svc, repo := newTestService(t, time.Now())
	ctx := context.Background()

	other := dose("e2", "u1", time.Now())
	other.RegistrationID = "reg-2"
	require.NoError(t, svc.SaveBatch(ctx, []schedule.DoseEvent{dose("e1", "u1", time.Now()), other}))

	require.NoError(t, svc.DeleteByRegistration(ctx, "reg-1"))
	assert.Empty(t, repo.get("e1").ID)
	assert.Equal(t, "e2", repo.get("e2").ID)

	assert.ErrorIs(t, svc.DeleteByRegistration(ctx, ""), ErrInvalidInput)
}

func TestSummarize_CountsPerDay(t *testing.T) {
	loc := seoul(t)
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, loc)
	taken := time.Date(2024, 1, 1, 8, 1, 0, 0, loc)

	e1 := dose("e1", "u1", time.Date(2024, 1, 1, 8, 0, 0, 0, loc))
	e1.TakenAt = &taken
	events := []schedule.DoseEvent{
		e1,
		dose("e2", "u1", time.Date(2024, 1, 1, 20, 0, 0, 0, loc)), // perdida
		dose("e3", "u1", time.Date(2024, 1, 2, 8, 0, 0, 0, loc)),  // perdida
		dose("e4", "u1", time.Date(2024, 1, 2, 20, 0, 0, 0, loc)), // futura
		dose("e5", "u1", time.Date(2024, 1, 9, 8, 0, 0, 0, loc)),  // fuera de rango
	}

	a := Summarize(events, dates.NewDate(2024, 1, 1), dates.NewDate(2024, 1, 3), now)

	assert.Equal(t, Counts{Scheduled: 4, Taken: 1, Missed: 2, Upcoming: 1}, a.Counts)
	assert.InDelta(t, 1.0/3.0, a.Rate(), 1e-9)

	require.Len(t, a.Days, 3)
	assert.Equal(t, Counts{Scheduled: 2, Taken: 1, Missed: 1}, a.Days[0].Counts)
	assert.Equal(t, Counts{Scheduled: 2, Missed: 1, Upcoming: 1}, a.Days[1].Counts)
	assert.Equal(t, Counts{}, a.Days[2].Counts)
	assert.Equal(t, 0.0, a.Days[2].Rate())
}

func TestListDue_UsesSnoozeAndSkipsSent(t *testing.T) {
	loc := seoul(t)
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, loc)
	svc, _ := newTestService(t, now)
	ctx := context.Background()

	snoozed := dose("snoozed", "u1", now.Add(-time.Minute))
	until := now.Add(10 * time.Minute)
	snoozed.SnoozedUntil = &until

	require.NoError(t, svc.SaveBatch(ctx, []schedule.DoseEvent{dose("due", "u1", now), snoozed}))

	due, err := svc.ListDue(ctx, now.Add(-time.Minute), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].ID)

	require.NoError(t, svc.MarkAlarmSent(ctx, []string{"due"}, now))
	due, err = svc.ListDue(ctx, now.Add(-time.Minute), now)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = svc.ListDue(ctx, now, until)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "snoozed", due[0].ID)
}

func TestEncodeDecodeCommand(t *testing.T) {
	at := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	in := MarkTaken{UserID: "u1", EventIDs: []string{"a", "b"}, At: at}

	b, err := EncodeCommand(in)
	require.NoError(t, err)

	out, err := DecodeCommand(b)
	require.NoError(t, err)
	got, ok := out.(MarkTaken)
	require.True(t, ok)
	assert.Equal(t, in.EventIDs, got.EventIDs)
	assert.True(t, at.Equal(got.At))

	_, err = DecodeCommand([]byte(`{"kind":"explode","payload":{}}`))
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
