package redisstream

import (
	"context"
	"fmt"
	"time"

	"myrhythm/internal/domain/doses"

	"github.com/go-redis/redis/v8"
)

const (
	DefaultStream = "myrhythm:dose-commands"
	DefaultGroup  = "dose-appliers"

	fieldKind = "kind"
	fieldData = "data"
	fieldTS   = "ts"
)

// Publisher es un doses.Dispatcher que deja el comando en un stream.
type Publisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewPublisher(client *redis.Client, stream string, maxLen int64) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *Publisher) Dispatch(ctx context.Context, cmd doses.Command) error {
	if cmd == nil {
		return doses.ErrInvalidInput
	}
	data, err := doses.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			fieldKind: string(cmd.Kind()),
			fieldData: string(data),
			fieldTS:   time.Now().Unix(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
