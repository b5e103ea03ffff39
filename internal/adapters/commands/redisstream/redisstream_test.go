package redisstream

import (
	"context"
	"errors"
	"sync"
	"testing"

	"myrhythm/internal/domain/doses"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingApplier struct {
	mu   sync.Mutex
	got  []doses.Command
	fail bool
}

func (a *recordingApplier) Apply(ctx context.Context, cmd doses.Command) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, cmd)
	if a.fail {
		return errors.New("forbidden")
	}
	return nil
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestPublishAndConsume(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()

	app := &recordingApplier{}
	c := NewConsumer(client, app, nil, ConsumerOptions{Block: -1})
	require.NoError(t, c.EnsureGroup(ctx))
	require.NoError(t, c.EnsureGroup(ctx), "BUSYGROUP is not an error")

	pub := NewPublisher(client, "", 1000)
	require.NoError(t, pub.Dispatch(ctx, doses.MarkTaken{UserID: "u1", EventIDs: []string{"e1", "e2"}}))
	require.NoError(t, pub.Dispatch(ctx, doses.ToggleAlarm{UserID: "u1", EventIDs: []string{"e3"}, Enabled: true}))

	n, err := c.ConsumeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, app.got, 2)
	mt, ok := app.got[0].(doses.MarkTaken)
	require.True(t, ok)
	assert.Equal(t, []string{"e1", "e2"}, mt.EventIDs)
	ta, ok := app.got[1].(doses.ToggleAlarm)
	require.True(t, ok)
	assert.True(t, ta.Enabled)

	pending, err := client.XPending(ctx, DefaultStream, DefaultGroup).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)

	n, err = c.ConsumeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestConsumer_AcksFailuresAndGarbage(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()

	app := &recordingApplier{fail: true}
	c := NewConsumer(client, app, nil, ConsumerOptions{Stream: "cmds", Group: "g", Block: -1})
	require.NoError(t, c.EnsureGroup(ctx))

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "cmds",
		Values: map[string]interface{}{fieldData: "not json"},
	}).Err())
	require.NoError(t, NewPublisher(client, "cmds", 0).Dispatch(ctx, doses.Snooze{UserID: "u1", EventIDs: []string{"e1"}}))

	n, err := c.ConsumeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, app.got, 1)

	pending, err := client.XPending(ctx, "cmds", "g").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestRun_StopsOnCancel(t *testing.T) {
	_, client := setupRedis(t)
	ctx, cancel := context.WithCancel(context.Background())

	c := NewConsumer(client, &recordingApplier{}, nil, ConsumerOptions{Block: -1})
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	assert.NoError(t, <-done)
}

func TestPublisher_RejectsNil(t *testing.T) {
	_, client := setupRedis(t)
	assert.ErrorIs(t, NewPublisher(client, "", 0).Dispatch(context.Background(), nil), doses.ErrInvalidInput)
}
