package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"myrhythm/internal/domain/schedule"
	"myrhythm/internal/platform/dates"
)

type RegistrationsRepo struct {
	db *sql.DB
}

func NewRegistrationsRepo(db *sql.DB) *RegistrationsRepo {
	return &RegistrationsRepo{db: db}
}

const registrationColumns = `id, user_id, regi_type, label, medicine_names, dose_count_per_day,
	intake_times, start_date, end_date, day_count, meal_relation, memo, use_alarm, issued_at`

func (r *RegistrationsRepo) Create(ctx context.Context, reg schedule.Registration) error {
	names, err := json.Marshal(nonNil(reg.MedicineNames))
	if err != nil {
		return err
	}
	times, err := json.Marshal(nonNil(reg.IntakeTimes))
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
        INSERT INTO registrations (`+registrationColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		reg.ID, reg.UserID, string(reg.Type), reg.Label,
		string(names), reg.DoseCountPerDay, string(times),
		reg.StartDate.String(), reg.EndDate.String(), reg.DayCount,
		string(reg.MealRelation), reg.Memo, boolInt(reg.UseAlarm), millis(reg.IssuedAt),
	)
	return err
}

func (r *RegistrationsRepo) GetByID(ctx context.Context, id string) (schedule.Registration, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = ?`, strings.TrimSpace(id))
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Registration{}, ErrNotFound
	}
	return reg, err
}

func (r *RegistrationsRepo) ListByUser(ctx context.Context, userID string) ([]schedule.Registration, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+registrationColumns+`
        FROM registrations
        WHERE user_id = ?
        ORDER BY issued_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]schedule.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func (r *RegistrationsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(s rowScanner) (schedule.Registration, error) {
	var (
		reg                      schedule.Registration
		typ, meal                string
		names, times, start, end string
		useAlarm                 int
		issued                   int64
	)
	if err := s.Scan(
		&reg.ID, &reg.UserID, &typ, &reg.Label,
		&names, &reg.DoseCountPerDay, &times,
		&start, &end, &reg.DayCount,
		&meal, &reg.Memo, &useAlarm, &issued,
	); err != nil {
		return schedule.Registration{}, err
	}

	if err := json.Unmarshal([]byte(names), &reg.MedicineNames); err != nil {
		return schedule.Registration{}, fmt.Errorf("medicine_names: %w", err)
	}
	if err := json.Unmarshal([]byte(times), &reg.IntakeTimes); err != nil {
		return schedule.Registration{}, fmt.Errorf("intake_times: %w", err)
	}
	var err error
	if reg.StartDate, err = dates.ParseDate(start); err != nil {
		return schedule.Registration{}, err
	}
	if reg.EndDate, err = dates.ParseDate(end); err != nil {
		return schedule.Registration{}, err
	}

	reg.Type = schedule.RegiType(typ)
	reg.MealRelation = schedule.MealRelation(meal)
	reg.UseAlarm = useAlarm != 0
	reg.IssuedAt = fromMillis(issued)
	return reg, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
