package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/cuongbtq/task-tracker/internal/api/dto"
	"github.com/cuongbtq/task-tracker/internal/tracker"
)

// Current calls GET /api/v1/auth/session. It returns nil without error when
// no token is configured or the server does not recognise it.
func (c *Client) Current(ctx context.Context) (*tracker.Session, error) {
	if c.token == "" {
		return nil, nil
	}

	var out dto.SessionDTO
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/session", nil, nil, &out); err != nil {
		if IsUnauthorized(err) {
			return nil, nil
		}
		return nil, err
	}
	return &tracker.Session{UserID: out.UserID, ExpiresAt: out.ExpiresAt}, nil
}

// SignOut calls DELETE /api/v1/auth/session
func (c *Client) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/auth/session", nil, nil, nil)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Subscribe opens the session event stream and calls fn for every sign-in or
// sign-out. It returns once the server has attached its listener. Without a
// token, or when the token is rejected, nothing can change and a no-op closer
// is returned.
func (c *Client) Subscribe(ctx context.Context, fn func(tracker.SessionEvent)) (io.Closer, error) {
	if c.token == "" {
		return nopCloser{}, nil
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)

	req, err := c.newRequest(streamCtx, http.MethodGet, "/api/v1/auth/session/events", nil, nil)
	if err != nil {
		stop()
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		stop()
		cancel()
		return nil, fmt.Errorf("failed to open session stream: %w", err)
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		stop()
		cancel()
		apiErr := newAPIError(resp.StatusCode, body)
		if apiErr.StatusCode == http.StatusUnauthorized {
			return nopCloser{}, nil
		}
		return nil, apiErr
	}

	reader := newEventReader(resp.Body)
	ev, err := reader.Next()
	if err != nil || ev.Name != "ready" {
		resp.Body.Close()
		stop()
		cancel()
		if err == nil {
			err = fmt.Errorf("unexpected first event %q", ev.Name)
		}
		return nil, fmt.Errorf("session stream handshake failed: %w", err)
	}

	sub := &subscription{
		cancel: func() {
			stop()
			cancel()
		},
		done: make(chan struct{}),
	}
	go sub.run(reader, resp.Body, fn, c.logger)
	return sub, nil
}

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) run(reader *eventReader, body io.ReadCloser, fn func(tracker.SessionEvent), logger *slog.Logger) {
	defer close(s.done)
	defer body.Close()

	for {
		ev, err := reader.Next()
		if err != nil {
			if err != io.EOF {
				logger.Debug("Session stream ended", slog.String("error", err.Error()))
			}
			return
		}

		switch tracker.SessionEventType(ev.Name) {
		case tracker.SessionSignedIn, tracker.SessionSignedOut:
		default:
			// ping and unknown events
			continue
		}

		var payload dto.SessionEventDTO
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			logger.Warn("Dropping malformed session event",
				slog.String("event", ev.Name),
				slog.String("error", err.Error()),
			)
			continue
		}

		out := tracker.SessionEvent{Type: tracker.SessionEventType(ev.Name)}
		if payload.Session != nil && out.Type == tracker.SessionSignedIn {
			out.Session = &tracker.Session{
				UserID:    payload.Session.UserID,
				ExpiresAt: payload.Session.ExpiresAt,
			}
		}
		fn(out)

		if out.Type == tracker.SessionSignedOut {
			return
		}
	}
}

// Close stops the stream and waits for the reader goroutine. It is idempotent.
func (s *subscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}
