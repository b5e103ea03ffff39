package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"myrhythm/internal/domain/doses"
	"myrhythm/internal/domain/schedule"

	"github.com/lib/pq"
)

type DosesRepo struct {
	db *sql.DB
}

func NewDosesRepo(db *sql.DB) *DosesRepo {
	return &DosesRepo{db: db}
}

const doseColumns = `
	id, user_id, registration_id,
	label, medicine_name, scheduled_at,
	meal_relation, memo, use_alarm,
	taken_at, snoozed_until, alarm_sent_at`

// CreateBatch inserta todas las tomas en una transacción.
func (r *DosesRepo) CreateBatch(ctx context.Context, events []schedule.DoseEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dose_events (`+doseColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.ID,
			e.UserID,
			e.RegistrationID,
			e.Label,
			e.MedicineName,
			e.ScheduledAt,
			string(e.MealRelation),
			e.Memo,
			e.UseAlarm,
			nullTime(e.TakenAt),
			nullTime(e.SnoozedUntil),
			nullTime(e.AlarmSentAt),
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
	return r.query(ctx, `
		SELECT `+doseColumns+`
		FROM dose_events
		WHERE id = ANY($1)
		ORDER BY scheduled_at, medicine_name
	`, pq.Array(ids))
}

func (r *DosesRepo) ListByUser(ctx context.Context, userID string, filter doses.ListFilter) ([]schedule.DoseEvent, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	sb := strings.Builder{}
	sb.WriteString(`
		SELECT ` + doseColumns + `
		FROM dose_events
		WHERE user_id = $1
	`)

	args := []any{userID}
	argN := 2

	if filter.From != nil {
		sb.WriteString(fmt.Sprintf(" AND scheduled_at >= $%d", argN))
		args = append(args, *filter.From)
		argN++
	}
	if filter.To != nil {
		sb.WriteString(fmt.Sprintf(" AND scheduled_at <= $%d", argN))
		args = append(args, *filter.To)
	}

	sb.WriteString(" ORDER BY scheduled_at, medicine_name")

	return r.query(ctx, sb.String(), args...)
}

func (r *DosesRepo) ListDue(ctx context.Context, from, to time.Time) ([]schedule.DoseEvent, error) {
	return r.query(ctx, `
		SELECT `+doseColumns+`
		FROM dose_events
		WHERE use_alarm
		  AND taken_at IS NULL
		  AND alarm_sent_at IS NULL
		  AND GREATEST(scheduled_at, COALESCE(snoozed_until, scheduled_at)) > $1
		  AND GREATEST(scheduled_at, COALESCE(snoozed_until, scheduled_at)) <= $2
		ORDER BY scheduled_at, user_id, medicine_name
	`, from, to)
}

func (r *DosesRepo) SetTaken(ctx context.Context, ids []string, takenAt *time.Time) error {
	return r.exec(ctx, `UPDATE dose_events SET taken_at = $1 WHERE id = ANY($2)`, nullTime(takenAt), pq.Array(ids))
}

func (r *DosesRepo) SetAlarm(ctx context.Context, ids []string, enabled bool) error {
	return r.exec(ctx, `UPDATE dose_events SET use_alarm = $1 WHERE id = ANY($2)`, enabled, pq.Array(ids))
}

func (r *DosesRepo) SetSnooze(ctx context.Context, ids []string, until *time.Time) error {
	return r.exec(ctx, `UPDATE dose_events SET snoozed_until = $1, alarm_sent_at = NULL WHERE id = ANY($2)`, nullTime(until), pq.Array(ids))
}

func (r *DosesRepo) MarkAlarmSent(ctx context.Context, ids []string, at time.Time) error {
	return r.exec(ctx, `UPDATE dose_events SET alarm_sent_at = $1 WHERE id = ANY($2)`, at, pq.Array(ids))
}

func (r *DosesRepo) DeleteByRegistration(ctx context.Context, registrationID string) error {
	return r.exec(ctx, `DELETE FROM dose_events WHERE registration_id = $1`, registrationID)
}

func (r *DosesRepo) exec(ctx context.Context, query string, args ...any) error {
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *DosesRepo) query(ctx context.Context, query string, args ...any) ([]schedule.DoseEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]schedule.DoseEvent, 0)
	for rows.Next() {
		var (
			e                         schedule.DoseEvent
			meal                      string
			taken, snoozed, alarmSent sql.NullTime
		)
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.RegistrationID,
			&e.Label,
			&e.MedicineName,
			&e.ScheduledAt,
			&meal,
			&e.Memo,
			&e.UseAlarm,
			&taken,
			&snoozed,
			&alarmSent,
		); err != nil {
			return nil, err
		}
		e.MealRelation = schedule.MealRelation(meal)
		e.TakenAt = timePtr(taken)
		e.SnoozedUntil = timePtr(snoozed)
		e.AlarmSentAt = timePtr(alarmSent)
		out = append(out, e)
	}
	return out, rows.Err()
}
