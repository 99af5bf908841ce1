package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cuongbtq/task-tracker/internal/api/domain"
	"github.com/cuongbtq/task-tracker/internal/api/handler"
	"github.com/cuongbtq/task-tracker/internal/api/router"
	"github.com/cuongbtq/task-tracker/internal/api/storage"
	"github.com/cuongbtq/task-tracker/internal/session"
	"github.com/cuongbtq/task-tracker/internal/tracker"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRepository serves the API from a tracker.MemoryTable
type memoryRepository struct {
	table     *tracker.MemoryTable
	createErr error
}

func (r *memoryRepository) CreateTask(ctx context.Context, in domain.NewTask) (*domain.Task, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	task, err := r.table.Insert(ctx, in.Description, in.UserID)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *memoryRepository) GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	tasks, _ := r.table.List(ctx, userID)
	for _, t := range tasks {
		if t.ID == taskID {
			return &t, nil
		}
	}
	return nil, domain.ErrTaskNotFound
}

func (r *memoryRepository) ListTasks(ctx context.Context, filter storage.TaskFilter) ([]domain.Task, error) {
	tasks, _ := r.table.List(ctx, filter.UserID)
	if filter.PageSize > 0 && len(tasks) > filter.PageSize+1 {
		tasks = tasks[:filter.PageSize+1]
	}
	return tasks, nil
}

type testServer struct {
	server   *httptest.Server
	repo     *memoryRepository
	sessions *session.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := &testServer{
		repo:     &memoryRepository{table: tracker.NewMemoryTable()},
		sessions: session.NewStore(rdb, "session", logger),
	}

	engine := router.SetupRouter(&handler.Dependencies{
		Logger:            logger,
		Tasks:             ts.repo,
		Sessions:          ts.sessions,
		SessionTTL:        time.Hour,
		HeartbeatInterval: 50 * time.Millisecond,
	})
	ts.server = httptest.NewServer(engine)
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client(t *testing.T, token string) *Client {
	t.Helper()
	c, err := New(ts.server.URL, token, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return c
}

func (ts *testServer) signIn(t *testing.T, userID string) string {
	t.Helper()
	sess, err := ts.sessions.Create(context.Background(), userID, time.Hour)
	require.NoError(t, err)
	return sess.Token
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", "")
	assert.Error(t, err)

	_, err = New("://nope", "")
	assert.Error(t, err)
}

func TestClient_InsertAndList(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t, ts.signIn(t, "alice"))
	ctx := context.Background()

	first, err := c.Insert(ctx, "first", "alice")
	require.NoError(t, err)
	second, err := c.Insert(ctx, "Summarize this doc", "alice")
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusPending, second.Status)
	assert.Equal(t, "alice", second.UserID)

	tasks, err := c.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, second.ID, tasks[0].ID)
	assert.Equal(t, first.ID, tasks[1].ID)

	got, err := c.GetTask(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Description)
}

func TestClient_ListPage(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t, ts.signIn(t, "alice"))
	ctx := context.Background()

	for _, d := range []string{"a", "b", "c"} {
		_, err := c.Insert(ctx, d, "alice")
		require.NoError(t, err)
	}

	page, err := c.ListPage(ctx, 2, "")
	require.NoError(t, err)
	assert.Len(t, page.Tasks, 2)
	assert.NotEmpty(t, page.NextCursor)
}

func TestClient_ErrorsCarryServerMessage(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t, ts.signIn(t, "alice"))
	ctx := context.Background()

	_, err := c.Insert(ctx, "   ", "alice")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, domain.ErrEmptyDescription.Error(), apiErr.UserMessage())

	_, err = c.Insert(ctx, "not mine", "bob")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)

	ts.repo.createErr = errors.New("disk full")
	_, err = c.Insert(ctx, "work", "alice")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Failed to create task", apiErr.Message)
}

func TestClient_Unauthorized(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t, "bogus-token")

	_, err := c.List(context.Background(), "alice")
	assert.True(t, IsUnauthorized(err))

	sess, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)

	closer, err := c.Subscribe(context.Background(), func(tracker.SessionEvent) {})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
}

func TestClient_CurrentWithoutToken(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t, "")

	assert.False(t, c.HasToken())
	sess, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestClient_SubscribeDeliversSignOut(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t, ts.signIn(t, "alice"))

	sess, err := c.Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "alice", sess.UserID)

	events := make(chan tracker.SessionEvent, 4)
	closer, err := c.Subscribe(context.Background(), func(ev tracker.SessionEvent) { events <- ev })
	require.NoError(t, err)
	defer closer.Close()

	require.NoError(t, c.SignOut(context.Background()))

	select {
	case ev := <-events:
		assert.Equal(t, tracker.SessionSignedOut, ev.Type)
		assert.Nil(t, ev.Session)
	case <-time.After(2 * time.Second):
		t.Fatal("no sign-out event")
	}

	sess, err = c.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestClient_SubscribeCloseStopsStream(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t, ts.signIn(t, "alice"))

	closer, err := c.Subscribe(context.Background(), func(tracker.SessionEvent) {})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		closer.Close()
		closer.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not return")
	}
}

func TestStoreAgainstServer(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t, ts.signIn(t, "alice"))

	store := tracker.NewStore(c, tracker.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer store.Close()

	require.NoError(t, store.Bind(context.Background(), c))

	task, err := store.Submit(context.Background(), "Summarize this doc")
	require.NoError(t, err)

	tasks := store.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)

	require.NoError(t, c.SignOut(context.Background()))
	assert.Eventually(t, func() bool {
		return store.Session() == nil && len(store.Tasks()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventReader(t *testing.T) {
	stream := strings.Join([]string{
		": comment",
		"event:ready",
		`data:{"user_id":"alice"}`,
		"",
		"event: ping",
		"data:",
		"",
		"data: line one",
		"data: line two",
		"",
		"",
	}, "\n")

	r := newEventReader(strings.NewReader(stream))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, event{Name: "ready", Data: `{"user_id":"alice"}`}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, event{Name: "ping", Data: ""}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, event{Name: "message", Data: "line one\nline two"}, ev)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventReader_DropsUnterminatedEvent(t *testing.T) {
	r := newEventReader(strings.NewReader("event: signed_out\ndata: {}"))

	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
