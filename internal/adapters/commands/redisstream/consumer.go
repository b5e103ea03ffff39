package redisstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"myrhythm/internal/domain/doses"
	"myrhythm/internal/platform/logger"

	"github.com/go-redis/redis/v8"
)

type ConsumerOptions struct {
	Stream   string
	Group    string
	Consumer string
	Batch    int64
	// Block es la espera de XREADGROUP. Negativo = no bloquear.
	Block time.Duration
}

// Consumer lee comandos del stream con un consumer group y los aplica.
// Cada mensaje se confirma (XACK) aunque falle: no hay reintentos.
type Consumer struct {
	client  *redis.Client
	applier doses.Applier
	log     logger.Logger
	opts    ConsumerOptions
}

func NewConsumer(client *redis.Client, applier doses.Applier, log logger.Logger, opts ConsumerOptions) *Consumer {
	if opts.Stream == "" {
		opts.Stream = DefaultStream
	}
	if opts.Group == "" {
		opts.Group = DefaultGroup
	}
	if opts.Consumer == "" {
		opts.Consumer = "consumer-1"
	}
	if opts.Batch <= 0 {
		opts.Batch = 32
	}
	if opts.Block == 0 {
		opts.Block = 5 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Consumer{
		client:  client,
		applier: applier,
		log: log.With(map[string]any{
			"component": "redis-consumer",
			"stream":    opts.Stream,
			"group":     opts.Group,
		}),
		opts: opts,
	}
}

// EnsureGroup crea el grupo (y el stream) si no existen.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.opts.Stream, c.opts.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Run consume hasta que se cancele ctx, con backoff exponencial (1s a 30s)
// ante errores de lectura.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	c.log.Info("stream consumer started", map[string]any{"consumer": c.opts.Consumer})

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := c.ConsumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("failed to consume stream", map[string]any{"err": err, "backoff": backoff.String()})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}
		backoff = time.Second
	}
}

// ConsumeOnce lee un lote, lo aplica y confirma. Devuelve cuántos mensajes leyó.
func (c *Consumer) ConsumeOnce(ctx context.Context) (int, error) {
	block := c.opts.Block
	if block < 0 {
		block = -1
	}
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.opts.Group,
		Consumer: c.opts.Consumer,
		Streams:  []string{c.opts.Stream, ">"},
		Count:    c.opts.Batch,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("xreadgroup: %w", err)
	}

	n := 0
	for _, s := range streams {
		for _, msg := range s.Messages {
			n++
			c.handle(ctx, msg)
			if err := c.client.XAck(ctx, c.opts.Stream, c.opts.Group, msg.ID).Err(); err != nil {
				c.log.Warn("xack failed", map[string]any{"message_id": msg.ID, "err": err})
			}
		}
	}
	return n, nil
}

func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) {
	raw, _ := msg.Values[fieldData].(string)
	cmd, err := doses.DecodeCommand([]byte(raw))
	if err != nil {
		c.log.Warn("dropping undecodable command", map[string]any{"message_id": msg.ID, "err": err})
		return
	}

	fields := map[string]any{
		"message_id": msg.ID,
		"kind":       string(cmd.Kind()),
		"user":       cmd.Owner(),
	}
	if err := c.applier.Apply(ctx, cmd); err != nil {
		fields["err"] = err
		c.log.Warn("command not applied", fields)
		return
	}
	c.log.Debug("command applied", fields)
}
