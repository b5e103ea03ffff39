package doses

import (
	"context"
	"errors"
	"sync"
	"time"

	"myrhythm/internal/platform/logger"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

// AsyncDispatcher encola comandos en un canal y los aplica con N workers.
// No reintenta ni revierte: los errores sólo se loguean.
type AsyncDispatcher struct {
	applier Applier
	log     logger.Logger
	timeout time.Duration

	queue chan Command
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type AsyncOptions struct {
	Workers   int
	QueueSize int
	// Timeout por comando aplicado.
	Timeout time.Duration
}

func NewAsyncDispatcher(applier Applier, log logger.Logger, opts AsyncOptions) *AsyncDispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}

	d := &AsyncDispatcher{
		applier: applier,
		log:     log.With(map[string]any{"component": "dose-commands"}),
		timeout: opts.Timeout,
		queue:   make(chan Command, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Dispatch encola sin esperar la aplicación. Si la cola está llena espera
// hasta que haya lugar o se cancele ctx.
func (d *AsyncDispatcher) Dispatch(ctx context.Context, cmd Command) error {
	if cmd == nil {
		return ErrInvalidInput
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close deja de aceptar comandos y drena la cola.
func (d *AsyncDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *AsyncDispatcher) work() {
	defer d.wg.Done()
	for cmd := range d.queue {
		d.apply(cmd)
	}
}

func (d *AsyncDispatcher) apply(cmd Command) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	fields := map[string]any{
		"kind":   string(cmd.Kind()),
		"user":   cmd.Owner(),
		"events": len(cmd.Targets()),
	}
	if err := d.applier.Apply(ctx, cmd); err != nil {
		fields["err"] = err
		d.log.Warn("command not applied", fields)
		return
	}
	d.log.Debug("command applied", fields)
}

// InlineDispatcher aplica en el mismo goroutine. Útil en tests y CLI.
type InlineDispatcher struct {
	Applier Applier
}

func (d InlineDispatcher) Dispatch(ctx context.Context, cmd Command) error {
	return d.Applier.Apply(ctx, cmd)
}
