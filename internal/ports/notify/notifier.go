package notify

import (
	"context"
	"time"
)

// Alarm es un aviso de toma: un bucket (usuario + hora) con sus medicamentos.
type Alarm struct {
	UserID       string    `json:"user_id"`
	EventIDs     []string  `json:"event_ids"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Label        string    `json:"label,omitempty"`
	Medicines    []string  `json:"medicines"`
	MealRelation string    `json:"meal_relation,omitempty"`
	Memo         string    `json:"memo,omitempty"`
	Snoozed      bool      `json:"snoozed"`
}

// Notifier entrega una alarma por algún canal.
type Notifier interface {
	Notify(ctx context.Context, a Alarm) error
}
