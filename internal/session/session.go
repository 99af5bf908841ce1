// Package session stores authenticated sessions in Redis and broadcasts
// sign-in and sign-out changes over Redis pub/sub.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrSessionNotFound is returned when a token is unknown, revoked or expired
	ErrSessionNotFound = errors.New("session not found")
)

type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
)

// Session is an authenticated user context
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Event describes a change to a session. Session is nil for sign-out events
// whose session had already expired.
type Event struct {
	Type    EventType `json:"type"`
	Session *Session  `json:"session,omitempty"`
}

// Options configure the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a Redis client and verifies it with PING
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Store persists sessions under "<prefix>:<token>" and publishes changes on
// "<prefix>:events:<token>"
type Store struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(client *redis.Client, prefix string, logger *slog.Logger) *Store {
	if prefix == "" {
		prefix = "session"
	}
	return &Store{
		client: client,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Store) key(token string) string {
	return s.prefix + ":" + token
}

func (s *Store) channel(token string) string {
	return s.prefix + ":events:" + token
}

// Create issues a new session for userID that expires after ttl.
//
// The signed_in event goes to the new token's channel so every session has a
// matching signed_in and signed_out pair. Subscribe needs the token, so a
// per-token listener always attaches after this publish and only ever sees
// signed_out; pattern subscribers on the events channels see both.
func (s *Store) Create(ctx context.Context, userID string, ttl time.Duration) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}

	now := s.now().UTC()
	sess := &Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(sess.Token), data, ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.publish(ctx, sess.Token, Event{Type: EventSignedIn, Session: sess})

	s.logger.Info("Session created",
		slog.String("user_id", userID),
		slog.Time("expires_at", sess.ExpiresAt),
	)

	return sess, nil
}

// Lookup returns the live session for token
func (s *Store) Lookup(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	return &sess, nil
}

// Revoke deletes the session and notifies subscribers of the sign-out
func (s *Store) Revoke(ctx context.Context, token string) error {
	data, err := s.client.GetDel(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	ev := Event{Type: EventSignedOut}
	var sess Session
	if err := json.Unmarshal(data, &sess); err == nil {
		ev.Session = &sess
	}

	s.publish(ctx, token, ev)

	s.logger.Info("Session revoked", slog.String("user_id", sess.UserID))
	return nil
}

// publish failures are logged; the stored state is already authoritative
func (s *Store) publish(ctx context.Context, token string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("Failed to encode session event", slog.String("error", err.Error()))
		return
	}

	if err := s.client.Publish(ctx, s.channel(token), data).Err(); err != nil {
		s.logger.Error("Failed to publish session event",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// Subscribe listens for changes to the session identified by token. The
// subscription is active when Subscribe returns.
func (s *Store) Subscribe(ctx context.Context, token string) (*Subscription, error) {
	ps := s.client.Subscribe(ctx, s.channel(token))

	// Wait for the subscribe confirmation so no event published after this
	// call returns can be missed
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to session events: %w", err)
	}

	sub := &Subscription{
		ps:     ps,
		events: make(chan Event, 8),
		done:   make(chan struct{}),
	}
	go sub.pump(s.logger)

	return sub, nil
}

// Subscription is a scoped listener handle. Close must be called to release
// the underlying Redis connection.
type Subscription struct {
	ps     *redis.PubSub
	events chan Event
	done   chan struct{}

	once     sync.Once
	closeErr error
}

// Events yields decoded session events until the subscription is closed
func (sub *Subscription) Events() <-chan Event {
	return sub.events
}

func (sub *Subscription) pump(logger *slog.Logger) {
	defer close(sub.events)

	for msg := range sub.ps.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			logger.Warn("Dropping malformed session event",
				slog.String("channel", msg.Channel),
				slog.String("error", err.Error()),
			)
			continue
		}

		select {
		case sub.events <- ev:
		case <-sub.done:
			return
		}
	}
}

// Close unsubscribes. It is safe to call more than once.
func (sub *Subscription) Close() error {
	sub.once.Do(func() {
		close(sub.done)
		sub.closeErr = sub.ps.Close()
	})
	return sub.closeErr
}
