package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"myrhythm/internal/domain/doses"
	"myrhythm/internal/domain/schedule"
)

type DosesRepo struct {
	db *sql.DB
}

func NewDosesRepo(db *sql.DB) *DosesRepo {
	return &DosesRepo{db: db}
}

const doseColumns = `id, user_id, registration_id, label, medicine_name, scheduled_at,
	meal_relation, memo, use_alarm, taken_at, snoozed_until, alarm_sent_at`

// alarmAtExpr es AlarmAt() en SQL: el snooze si es posterior a la hora programada.
const alarmAtExpr = `MAX(scheduled_at, COALESCE(snoozed_until, scheduled_at))`

func (r *DosesRepo) CreateBatch(ctx context.Context, events []schedule.DoseEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO dose_events (`+doseColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.UserID, e.RegistrationID, e.Label, e.MedicineName, millis(e.ScheduledAt),
			string(e.MealRelation), e.Memo, boolInt(e.UseAlarm),
			nullMillis(e.TakenAt), nullMillis(e.SnoozedUntil), nullMillis(e.AlarmSentAt),
		); err != nil {
			return fmt.Errorf("insert dose event %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (r *DosesRepo) GetByIDs(ctx context.Context, ids []string) ([]schedule.DoseEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks, args := inClause(ids)
	return r.query(ctx, `SELECT `+doseColumns+` FROM dose_events WHERE id IN (`+marks+`) ORDER BY scheduled_at, medicine_name`, args...)
}

func (r *DosesRepo) ListByUser(ctx context.Context, userID string, filter doses.ListFilter) ([]schedule.DoseEvent, error) {
	q := `SELECT ` + doseColumns + ` FROM dose_events WHERE user_id = ?`
	args := []any{userID}
	if filter.From != nil {
		q += ` AND scheduled_at >= ?`
		args = append(args, millis(*filter.From))
	}
	if filter.To != nil {
		q += ` AND scheduled_at <= ?`
		args = append(args, millis(*filter.To))
	}
	q += ` ORDER BY scheduled_at, medicine_name`
	return r.query(ctx, q, args...)
}

func (r *DosesRepo) ListDue(ctx context.Context, from, to time.Time) ([]schedule.DoseEvent, error) {
	return r.query(ctx, `
        SELECT `+doseColumns+`
        FROM dose_events
        WHERE use_alarm = 1
          AND taken_at IS NULL
          AND alarm_sent_at IS NULL
          AND `+alarmAtExpr+` > ?
          AND `+alarmAtExpr+` <= ?
        ORDER BY scheduled_at, user_id, medicine_name`,
		millis(from), millis(to))
}

func (r *DosesRepo) SetTaken(ctx context.Context, ids []string, takenAt *time.Time) error {
	return r.updateIDs(ctx, `UPDATE dose_events SET taken_at = ?`, ids, nullMillis(takenAt))
}

func (r *DosesRepo) SetAlarm(ctx context.Context, ids []string, enabled bool) error {
	return r.updateIDs(ctx, `UPDATE dose_events SET use_alarm = ?`, ids, boolInt(enabled))
}

func (r *DosesRepo) SetSnooze(ctx context.Context, ids []string, until *time.Time) error {
	return r.updateIDs(ctx, `UPDATE dose_events SET alarm_sent_at = NULL, snoozed_until = ?`, ids, nullMillis(until))
}

func (r *DosesRepo) MarkAlarmSent(ctx context.Context, ids []string, at time.Time) error {
	return r.updateIDs(ctx, `UPDATE dose_events SET alarm_sent_at = ?`, ids, millis(at))
}

func (r *DosesRepo) DeleteByRegistration(ctx context.Context, registrationID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM dose_events WHERE registration_id = ?`, registrationID)
	return err
}

func (r *DosesRepo) updateIDs(ctx context.Context, set string, ids []string, value any) error {
	if len(ids) == 0 {
		return nil
	}
	marks, idArgs := inClause(ids)
	args := append([]any{value}, idArgs...)
	_, err := r.db.ExecContext(ctx, set+` WHERE id IN (`+marks+`)`, args...)
	return err
}

func (r *DosesRepo) query(ctx context.Context, q string, args ...any) ([]schedule.DoseEvent, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]schedule.DoseEvent, 0)
	for rows.Next() {
		var (
			e                         schedule.DoseEvent
			scheduled                 int64
			meal                      string
			useAlarm                  int
			taken, snoozed, alarmSent sql.NullInt64
		)
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.RegistrationID, &e.Label, &e.MedicineName, &scheduled,
			&meal, &e.Memo, &useAlarm, &taken, &snoozed, &alarmSent,
		); err != nil {
			return nil, err
		}
		e.ScheduledAt = fromMillis(scheduled)
		e.MealRelation = schedule.MealRelation(meal)
		e.UseAlarm = useAlarm != 0
		e.TakenAt = fromNullMillis(taken)
		e.SnoozedUntil = fromNullMillis(snoozed)
		e.AlarmSentAt = fromNullMillis(alarmSent)
		out = append(out, e)
	}
	return out, rows.Err()
}
