package registrations

import (
	"context"

	"myrhythm/internal/domain/schedule"
)

// GetByID y Delete devuelven ErrNotFound (o un error que lo envuelva) si el id no existe.
type Repository interface {
	Create(ctx context.Context, r schedule.Registration) error
	GetByID(ctx context.Context, id string) (schedule.Registration, error)
	ListByUser(ctx context.Context, userID string) ([]schedule.Registration, error)
	Delete(ctx context.Context, id string) error
}
