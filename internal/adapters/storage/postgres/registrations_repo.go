package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"myrhythm/internal/domain/schedule"
	"myrhythm/internal/platform/dates"

	"github.com/lib/pq"
)

type RegistrationsRepo struct {
	db *sql.DB
}

func NewRegistrationsRepo(db *sql.DB) *RegistrationsRepo {
	return &RegistrationsRepo{db: db}
}

const registrationColumns = `
	id, user_id,
	regi_type, label,
	medicine_names, dose_count_per_day, intake_times,
	start_date, end_date, day_count,
	meal_relation, memo, use_alarm,
	issued_at`

func (r *RegistrationsRepo) Create(ctx context.Context, reg schedule.Registration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO registrations (`+registrationColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		reg.ID,
		reg.UserID,
		string(reg.Type),
		reg.Label,
		pq.Array(reg.MedicineNames),
		reg.DoseCountPerDay,
		pq.Array(reg.IntakeTimes),
		reg.StartDate.String(),
		reg.EndDate.String(),
		reg.DayCount,
		string(reg.MealRelation),
		reg.Memo,
		reg.UseAlarm,
		reg.IssuedAt,
	)
	return err
}

func (r *RegistrationsRepo) GetByID(ctx context.Context, id string) (schedule.Registration, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return schedule.Registration{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+registrationColumns+`
		FROM registrations
		WHERE id = $1
	`, id)

	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schedule.Registration{}, ErrNotFound
		}
		return schedule.Registration{}, err
	}
	return reg, nil
}

func (r *RegistrationsRepo) ListByUser(ctx context.Context, userID string) ([]schedule.Registration, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+registrationColumns+`
		FROM registrations
		WHERE user_id = $1
		ORDER BY issued_at DESC
	`, userID)
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

// Delete borra el registro; las tomas caen por ON DELETE CASCADE.
func (r *RegistrationsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRegistration(s scanner) (schedule.Registration, error) {
	var (
		reg                schedule.Registration
		typ, meal          string
		start, end         time.Time
		medicines, intakes []string
	)
	if err := s.Scan(
		&reg.ID,
		&reg.UserID,
		&typ,
		&reg.Label,
		pq.Array(&medicines),
		&reg.DoseCountPerDay,
		pq.Array(&intakes),
		&start,
		&end,
		&reg.DayCount,
		&meal,
		&reg.Memo,
		&reg.UseAlarm,
		&reg.IssuedAt,
	); err != nil {
		return schedule.Registration{}, err
	}

	reg.Type = schedule.RegiType(typ)
	reg.MealRelation = schedule.MealRelation(meal)
	reg.MedicineNames = medicines
	reg.IntakeTimes = intakes
	reg.StartDate = dates.DateOf(start.UTC())
	reg.EndDate = dates.DateOf(end.UTC())
	return reg, nil
}
