package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"myrhythm/internal/domain/registrations"
	"myrhythm/internal/domain/schedule"
)

// ErrNotFound es el del dominio para que el service lo distinga de otras fallas.
var ErrNotFound = registrations.ErrNotFound

type registrationRepo struct {
	mu   sync.RWMutex
	byID map[string]schedule.Registration
}

func NewRegistrationRepo() registrations.Repository {
	return &registrationRepo{
		byID: make(map[string]schedule.Registration),
	}
}

func (r *registrationRepo) Create(ctx context.Context, reg schedule.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(reg.ID) == "" {
		return errors.New("registration id required")
	}
	if _, exists := r.byID[reg.ID]; exists {
		return errors.New("registration already exists")
	}
	r.byID[reg.ID] = cloneRegistration(reg)
	return nil
}

func (r *registrationRepo) GetByID(ctx context.Context, id string) (schedule.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.byID[id]
	if !ok {
		return schedule.Registration{}, ErrNotFound
	}
	return cloneRegistration(reg), nil
}

func (r *registrationRepo) ListByUser(ctx context.Context, userID string) ([]schedule.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schedule.Registration, 0)
	for _, reg := range r.byID {
		if reg.UserID == userID {
			out = append(out, cloneRegistration(reg))
		}
	}

	// más reciente primero
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out, nil
}

func (r *registrationRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func cloneRegistration(reg schedule.Registration) schedule.Registration {
	reg.MedicineNames = append([]string(nil), reg.MedicineNames...)
	reg.IntakeTimes = append([]string(nil), reg.IntakeTimes...)
	return reg
}
