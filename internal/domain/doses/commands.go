package doses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Command es la unión cerrada de intents que la UI manda hacia arriba.
// Son fire-and-forget: Dispatch sólo encola.
type Command interface {
	Kind() CommandKind
	Owner() string
	Targets() []string
}

type CommandKind string

const (
	KindToggleAlarm CommandKind = "toggle_alarm"
	KindMarkTaken   CommandKind = "mark_taken"
	KindSnooze      CommandKind = "snooze"
)

type ToggleAlarm struct {
	UserID   string   `json:"user_id"`
	EventIDs []string `json:"event_ids"`
	Enabled  bool     `json:"enabled"`
}

type MarkTaken struct {
	UserID   string    `json:"user_id"`
	EventIDs []string  `json:"event_ids"`
	At       time.Time `json:"at"`
}

type Snooze struct {
	UserID   string    `json:"user_id"`
	EventIDs []string  `json:"event_ids"`
	Until    time.Time `json:"until"`
}

func (c ToggleAlarm) Kind() CommandKind { return KindToggleAlarm }
func (c ToggleAlarm) Owner() string     { return c.UserID }
func (c ToggleAlarm) Targets() []string { return c.EventIDs }
func (c MarkTaken) Kind() CommandKind   { return KindMarkTaken }
func (c MarkTaken) Owner() string       { return c.UserID }
func (c MarkTaken) Targets() []string   { return c.EventIDs }
func (c Snooze) Kind() CommandKind      { return KindSnooze }
func (c Snooze) Owner() string          { return c.UserID }
func (c Snooze) Targets() []string      { return c.EventIDs }

// Dispatcher recibe comandos sin confirmar su aplicación.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd Command) error
}

// Applier aplica un comando contra el repositorio (lo implementa *Service).
type Applier interface {
	Apply(ctx context.Context, cmd Command) error
}

var ErrUnknownCommand = errors.New("unknown command")

// envelope es la forma serializada de un Command (colas externas).
type envelope struct {
	Kind    CommandKind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func EncodeCommand(cmd Command) ([]byte, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	return json.Marshal(envelope{Kind: cmd.Kind(), Payload: payload})
}

func DecodeCommand(b []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}

	var (
		cmd Command
		err error
	)
	switch env.Kind {
	case KindToggleAlarm:
		var c ToggleAlarm
		err = json.Unmarshal(env.Payload, &c)
		cmd = c
	case KindMarkTaken:
		var c MarkTaken
		err = json.Unmarshal(env.Payload, &c)
		cmd = c
	case KindSnooze:
		var c Snooze
		err = json.Unmarshal(env.Payload, &c)
		cmd = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
	}
	return cmd, nil
}
