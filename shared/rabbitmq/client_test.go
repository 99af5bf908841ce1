package rabbitmq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	failures  int
	published []amqp.Publishing
	keys      []string
	calls     int
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("channel busy")
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublish(t *testing.T) {
	ch := &fakeChannel{}
	c := newClientWithChannel(&Config{ExchangeName: "tasks", PublishRetries: 2}, ch, testLogger())

	err := c.Publish(context.Background(), "task.created", []byte(`{"id":"1"}`))
	require.NoError(t, err)

	require.Len(t, ch.published, 1)
	assert.Equal(t, "task.created", ch.keys[0])
	assert.Equal(t, "application/json", ch.published[0].ContentType)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
}

func TestPublish_RetriesThenSucceeds(t *testing.T) {
	ch := &fakeChannel{failures: 2}
	c := newClientWithChannel(&Config{PublishRetries: 3}, ch, testLogger())

	var delays []time.Duration
	c.sleep = func(d time.Duration) { delays = append(delays, d) }

	require.NoError(t, c.Publish(context.Background(), "task.created", []byte("{}")))
	assert.Equal(t, 3, ch.calls)
	require.Len(t, delays, 2)
	assert.Equal(t, delays[0]*2, delays[1])
}

func TestPublish_GivesUp(t *testing.T) {
	ch := &fakeChannel{failures: 10}
	c := newClientWithChannel(&Config{PublishRetries: 1}, ch, testLogger())

	err := c.Publish(context.Background(), "task.created", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, ch.calls)
}

func TestPublish_NotConnected(t *testing.T) {
	ch := &fakeChannel{}
	c := newClientWithChannel(&Config{}, ch, testLogger())
	require.NoError(t, c.Close())

	assert.True(t, ch.closed)
	assert.False(t, c.IsConnected())
	assert.Error(t, c.Publish(context.Background(), "task.created", []byte("{}")))
	assert.Zero(t, ch.calls)
}
