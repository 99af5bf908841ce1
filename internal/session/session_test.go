package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(client, "session", slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()

	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session event")
		return Event{}
	}
}

func TestConnect(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := Connect(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}

func TestConnect_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = Connect(context.Background(), Options{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestCreateAndLookup(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "user-1", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, time.Hour, sess.ExpiresAt.Sub(sess.CreatedAt))

	assert.True(t, mr.Exists("session:"+sess.Token))
	assert.Equal(t, time.Hour, mr.TTL("session:"+sess.Token))

	got, err := store.Lookup(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)
	assert.Equal(t, sess.Token, got.Token)
}

func TestCreate_Validation(t *testing.T) {
	store, _ := setupStore(t)

	_, err := store.Create(context.Background(), "", time.Hour)
	assert.Error(t, err)

	_, err = store.Create(context.Background(), "user-1", 0)
	assert.Error(t, err)
}

func TestLookup_NotFound(t *testing.T) {
	store, _ := setupStore(t)

	_, err := store.Lookup(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = store.Lookup(context.Background(), "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLookup_Expired(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "user-1", time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.Lookup(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRevoke(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "user-1", time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Revoke(ctx, sess.Token))

	_, err = store.Lookup(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, store.Revoke(ctx, sess.Token), ErrSessionNotFound)
}

func TestSubscribe_ReceivesSignOut(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "user-1", time.Hour)
	require.NoError(t, err)

	sub, err := store.Subscribe(ctx, sess.Token)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, store.Revoke(ctx, sess.Token))

	ev := receive(t, sub)
	assert.Equal(t, EventSignedOut, ev.Type)
	require.NotNil(t, ev.Session)
	assert.Equal(t, "user-1", ev.Session.UserID)
}

func TestCreate_SignedInOnlyReachesPatternSubscribers(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	all := store.client.PSubscribe(ctx, "session:events:*")
	defer all.Close()
	_, err := all.Receive(ctx)
	require.NoError(t, err)

	sess, err := store.Create(ctx, "user-1", time.Hour)
	require.NoError(t, err)

	select {
	case msg := <-all.Channel():
		assert.Equal(t, "session:events:"+sess.Token, msg.Channel)
		assert.Contains(t, msg.Payload, `"signed_in"`)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signed_in")
	}

	sub, err := store.Subscribe(ctx, sess.Token)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, store.Revoke(ctx, sess.Token))
	assert.Equal(t, EventSignedOut, receive(t, sub).Type)
}

func TestSubscribe_IgnoresOtherSessions(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	mine, err := store.Create(ctx, "user-1", time.Hour)
	require.NoError(t, err)
	other, err := store.Create(ctx, "user-2", time.Hour)
	require.NoError(t, err)

	sub, err := store.Subscribe(ctx, mine.Token)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, store.Revoke(ctx, other.Token))
	require.NoError(t, store.Revoke(ctx, mine.Token))

	ev := receive(t, sub)
	require.NotNil(t, ev.Session)
	assert.Equal(t, mine.Token, ev.Session.Token)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	store, _ := setupStore(t)

	sub, err := store.Subscribe(context.Background(), "token")
	require.NoError(t, err)

	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel was not closed")
	}
}
