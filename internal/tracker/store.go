// Package tracker holds the client-side task state and keeps it in sync with
// the remote task table.
//
// Mutations go straight to the Table and are followed by a full re-read
// (invalidate, then refetch); the local list is never patched in place.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/cuongbtq/task-tracker/internal/api/domain"
)

var ErrClosed = errors.New("task store closed")

// Store exposes the current task list, newest first, and a thinking flag that
// is set while a submission is in flight.
//
// Subscribers registered through SubscribeTasks and SubscribeThinking are
// called synchronously and must not call Submit or Refresh from the callback.
type Store struct {
	table    Table
	logger   *slog.Logger
	notifier Notifier

	tasks    *Value[[]domain.Task]
	thinking *Value[bool]
	session  *Value[*Session]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	issued   uint64 // sequence of the most recently started refresh
	applied  uint64 // sequence of the most recently applied refresh
	inflight int
	listener io.Closer
	closed   bool
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func NewStore(table Table, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		table:    table,
		logger:   slog.Default(),
		notifier: discardNotifier{},
		tasks:    NewValue[[]domain.Task](nil),
		thinking: NewValue(false),
		session:  NewValue[*Session](nil),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tasks returns a copy of the current list. It is empty whenever no session
// is present, whatever was cached before.
func (s *Store) Tasks() []domain.Task {
	if s.session.Get() == nil {
		return []domain.Task{}
	}
	tasks := s.tasks.Get()
	if tasks == nil {
		return []domain.Task{}
	}
	return slices.Clone(tasks)
}

func (s *Store) Thinking() bool {
	return s.thinking.Get()
}

// Session returns the current session reference, nil when signed out
func (s *Store) Session() *Session {
	return s.session.Get()
}

// SubscribeTasks calls fn with the visible list after every change
func (s *Store) SubscribeTasks(fn func([]domain.Task)) (cancel func()) {
	return s.tasks.Subscribe(func([]domain.Task) {
		fn(s.Tasks())
	})
}

func (s *Store) SubscribeThinking(fn func(bool)) (cancel func()) {
	return s.thinking.Subscribe(fn)
}

// Submit inserts description for the current session user and, on success,
// re-reads the table once. Validation failures return before any Table call.
func (s *Store) Submit(ctx context.Context, description string) (domain.Task, error) {
	desc, err := domain.NormalizeDescription(description)
	if err != nil {
		s.notify("Error", "Please enter a task description", VariantDestructive)
		return domain.Task{}, err
	}

	sess := s.session.Get()
	if sess == nil {
		s.notify("Error", "You must be signed in to add tasks", VariantDestructive)
		return domain.Task{}, domain.ErrNoSession
	}

	s.beginWork()
	defer s.endWork()

	task, err := s.table.Insert(ctx, desc, sess.UserID)
	if err != nil {
		s.logger.Error("Failed to add task",
			slog.String("user_id", sess.UserID),
			slog.String("error", err.Error()),
		)
		s.notify("Error", failureMessage(err, "Failed to process your request"), VariantDestructive)
		return domain.Task{}, fmt.Errorf("failed to add task: %w", err)
	}

	s.logger.Info("Task added", slog.String("task_id", task.ID))
	s.notify("Task added", "Your request is being processed", VariantDefault)

	if err := s.Refresh(ctx); err != nil {
		return task, err
	}
	return task, nil
}

// Refresh re-reads the whole list for the current session. Without a session
// it clears the list and makes no Table call. A response is dropped when a
// later refresh has already been applied or the session user has changed.
func (s *Store) Refresh(ctx context.Context) error {
	sess := s.session.Get()
	if sess == nil {
		s.clearTasks()
		return nil
	}

	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.mu.Unlock()

	tasks, err := s.table.List(ctx, sess.UserID)
	if err != nil {
		s.logger.Error("Failed to load tasks",
			slog.String("user_id", sess.UserID),
			slog.String("error", err.Error()),
		)
		s.notify("Error", failureMessage(err, "Failed to load tasks"), VariantDestructive)
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	sortNewestFirst(tasks)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.applied {
		s.logger.Debug("Dropping stale task list", slog.Uint64("seq", seq))
		return nil
	}
	if cur := s.session.Get(); cur == nil || cur.UserID != sess.UserID {
		s.logger.Debug("Dropping task list for previous session", slog.String("user_id", sess.UserID))
		return nil
	}

	s.applied = seq
	s.tasks.Set(tasks)
	return nil
}

// SetSession replaces the session reference. Signing out or switching users
// clears the list; a new user triggers a background refresh.
func (s *Store) SetSession(sess *Session) {
	prev := s.session.Get()
	s.session.Set(sess)

	if sess == nil {
		s.clearTasks()
		return
	}

	if prev != nil && prev.UserID == sess.UserID {
		return
	}

	s.clearTasks()
	s.refreshInBackground()
}

// Bind attaches the Store to a session provider: it subscribes to changes,
// looks up the current session and loads its tasks. The subscription is
// released by Close.
func (s *Store) Bind(ctx context.Context, src SessionSource) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	listener, err := src.Subscribe(ctx, s.handleSessionEvent)
	if err != nil {
		return fmt.Errorf("failed to subscribe to session changes: %w", err)
	}

	sess, err := src.Current(ctx)
	if err != nil {
		listener.Close()
		return fmt.Errorf("failed to look up session: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return ErrClosed
	}
	prevListener := s.listener
	s.listener = listener
	s.mu.Unlock()

	if prevListener != nil {
		prevListener.Close()
	}

	s.session.Set(sess)
	if sess == nil {
		s.clearTasks()
		return nil
	}

	return s.Refresh(ctx)
}

func (s *Store) handleSessionEvent(ev SessionEvent) {
	s.logger.Debug("Session changed", slog.String("type", string(ev.Type)))

	switch ev.Type {
	case SessionSignedOut:
		s.SetSession(nil)
	case SessionSignedIn:
		s.SetSession(ev.Session)
	}
}

// Close releases the session subscription and waits for background refreshes
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()

	s.cancel()

	var err error
	if listener != nil {
		err = listener.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Store) refreshInBackground() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		_ = s.Refresh(s.ctx)
	}()
}

// clearTasks empties the list and invalidates refreshes already in flight
func (s *Store) clearTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applied = s.issued + 1
	s.issued = s.applied
	s.tasks.Set(nil)
}

func (s *Store) beginWork() {
	s.mu.Lock()
	s.inflight++
	first := s.inflight == 1
	s.mu.Unlock()

	if first {
		s.setThinking(true)
	}
}

func (s *Store) endWork() {
	s.mu.Lock()
	s.inflight--
	last := s.inflight == 0
	s.mu.Unlock()

	if last {
		s.setThinking(false)
	}
}

func (s *Store) setThinking(v bool) {
	s.logger.Debug("Thinking state changed", slog.Bool("thinking", v))
	s.thinking.Set(v)
}

func (s *Store) notify(title, description string, variant Variant) {
	s.notifier.Notify(Notice{Title: title, Description: description, Variant: variant})
}

func failureMessage(err error, fallback string) string {
	var msg interface{ UserMessage() string }
	if errors.As(err, &msg) && msg.UserMessage() != "" {
		return msg.UserMessage()
	}
	if err.Error() != "" {
		return err.Error()
	}
	return fallback
}

func sortNewestFirst(tasks []domain.Task) {
	slices.SortStableFunc(tasks, func(a, b domain.Task) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
