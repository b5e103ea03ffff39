package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"myrhythm/internal/domain/doses"
	"myrhythm/internal/domain/schedule"
	"myrhythm/internal/platform/dates"
)

var (
	ErrInvalidInput = schedule.ErrInvalidInput
	ErrNotFound     = errors.New("registration not found")
	ErrForbidden    = errors.New("forbidden")
)

type Service struct {
	repo  Repository
	doses *doses.Service
	mat   *schedule.Materializer
	now   func() time.Time
}

func NewService(repo Repository, dosesSvc *doses.Service, mat *schedule.Materializer) *Service {
	return &Service{
		repo:  repo,
		doses: dosesSvc,
		mat:   mat,
		now:   time.Now,
	}
}

type CreateInput struct {
	Type            schedule.RegiType
	Label           string
	MedicineNames   []string
	DoseCountPerDay int
	IntakeTimes     []string
	StartDate       dates.Date
	EndDate         dates.Date
	DayCount        int
	MealRelation    schedule.MealRelation
	Memo            string
	UseAlarm        bool
}

type CreateResult struct {
	Registration schedule.Registration
	EventCount   int
	RolledOver   bool
}

// Create valida, materializa y persiste el registro junto con sus tomas.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (CreateResult, error) {
	reg := schedule.Registration{
		UserID:          strings.TrimSpace(userID),
		Type:            in.Type,
		Label:           in.Label,
		MedicineNames:   in.MedicineNames,
		DoseCountPerDay: in.DoseCountPerDay,
		IntakeTimes:     in.IntakeTimes,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		DayCount:        in.DayCount,
		MealRelation:    in.MealRelation,
		Memo:            in.Memo,
		UseAlarm:        in.UseAlarm,
	}
	now := s.now()
	// el inicio por defecto se fija acá para que Validate acote el rango completo
	if reg.StartDate.IsZero() {
		reg.StartDate = dates.Today(now, s.mat.Location())
	}
	if err := schedule.Validate(reg); err != nil {
		return CreateResult{}, err
	}

	plan := s.mat.Materialize(reg, now)

	if err := s.repo.Create(ctx, plan.Registration); err != nil {
		return CreateResult{}, fmt.Errorf("save registration: %w", err)
	}
	if err := s.doses.SaveBatch(ctx, plan.Events); err != nil {
		// sin tomas el registro no sirve
		saveErr := fmt.Errorf("save dose events: %w", err)
		if delErr := s.repo.Delete(ctx, plan.Registration.ID); delErr != nil {
			return CreateResult{}, errors.Join(saveErr, fmt.Errorf("rollback registration %s: %w", plan.Registration.ID, delErr))
		}
		return CreateResult{}, saveErr
	}

	return CreateResult{
		Registration: plan.Registration,
		EventCount:   len(plan.Events),
		RolledOver:   plan.RolledOver,
	}, nil
}

// Get devuelve el registro si pertenece a userID.
func (s *Service) Get(ctx context.Context, userID, id string) (schedule.Registration, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.TrimSpace(userID) == "" {
		return schedule.Registration{}, ErrInvalidInput
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return schedule.Registration{}, ErrNotFound
		}
		return schedule.Registration{}, fmt.Errorf("get registration: %w", err)
	}
	if r.UserID != userID {
		return schedule.Registration{}, ErrForbidden
	}
	return r, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]schedule.Registration, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByUser(ctx, userID)
}

// Delete borra el registro y todas sus tomas.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	r, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.doses.DeleteByRegistration(ctx, r.ID); err != nil {
		return fmt.Errorf("delete dose events: %w", err)
	}
	return s.repo.Delete(ctx, r.ID)
}
