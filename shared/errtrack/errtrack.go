// Package errtrack forwards unexpected errors to Sentry alongside the
// structured log line. A Tracker built without a DSN only logs.
package errtrack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config holds Sentry client settings
type Config struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
	Debug       bool
	Module      string

	beforeSend func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event
}

// Tracker logs errors and captures them on its own hub
type Tracker struct {
	hub    *sentry.Hub
	logger *slog.Logger
}

// New builds a Tracker. An empty DSN yields a log-only tracker.
func New(cfg Config, logger *slog.Logger) (*Tracker, error) {
	t := &Tracker{logger: logger}
	if cfg.DSN == "" {
		return t, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: true,
		Debug:            cfg.Debug,
		BeforeSend:       cfg.beforeSend,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init sentry: %w", err)
	}

	t.hub = sentry.NewHub(client, sentry.NewScope())
	if cfg.Module != "" {
		t.hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("module", cfg.Module)
		})
	}

	return t, nil
}

// Enabled reports whether events are sent to Sentry
func (t *Tracker) Enabled() bool {
	return t != nil && t.hub != nil
}

// LogAndCapture logs err at error level and sends it to Sentry with msg and
// attrs attached as extras
func (t *Tracker) LogAndCapture(ctx context.Context, err error, msg string, attrs ...slog.Attr) {
	if t == nil || err == nil {
		return
	}

	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("error", err.Error()))
	for _, a := range attrs {
		args = append(args, a)
	}
	t.logger.ErrorContext(ctx, msg, args...)

	if t.hub == nil {
		return
	}

	t.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetExtra("context", msg)
		for _, a := range attrs {
			scope.SetExtra(a.Key, a.Value.String())
		}
		t.hub.CaptureException(err)
	})
}

// Flush waits for buffered events to be delivered
func (t *Tracker) Flush(timeout time.Duration) bool {
	if !t.Enabled() {
		return true
	}
	return t.hub.Flush(timeout)
}
