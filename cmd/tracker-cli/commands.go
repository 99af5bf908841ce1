package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/task-tracker/internal/api/domain"
	"github.com/cuongbtq/task-tracker/internal/client"
	"github.com/cuongbtq/task-tracker/internal/config"
	"github.com/cuongbtq/task-tracker/internal/keystore"
	"github.com/cuongbtq/task-tracker/internal/render"
	"github.com/cuongbtq/task-tracker/internal/tracker"
	"github.com/spf13/pflag"
)

type cliApp struct {
	cfg       *config.Config
	logger    *slog.Logger
	stdout    io.Writer
	stderr    io.Writer
	localUser string

	// table and source override the configured backend when set
	table  tracker.Table
	source tracker.SessionSource
}

func (app *cliApp) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "submit":
		return app.submit(ctx, args)
	case "list":
		return app.list(ctx, args)
	case "watch":
		return app.watch(ctx, args)
	case "signout":
		return app.signOut(ctx, args)
	case "key":
		return app.key(args)
	default:
		fmt.Fprintf(app.stderr, "unknown command %q\n", command)
		return errUsage
	}
}

func (app *cliApp) renderer() *render.Renderer {
	return render.New(render.DefaultTheme)
}

// backend returns the Table and SessionSource the Task Store runs against
func (app *cliApp) backend() (tracker.Table, tracker.SessionSource, error) {
	if app.table != nil && app.source != nil {
		return app.table, app.source, nil
	}

	if app.cfg.Client.Local {
		app.table = tracker.NewMemoryTable()
		app.source = localSession{session: &tracker.Session{UserID: app.localUser}}
		return app.table, app.source, nil
	}

	c, err := app.apiClient()
	if err != nil {
		return nil, nil, err
	}
	app.table, app.source = c, c
	return c, c, nil
}

func (app *cliApp) apiClient() (*client.Client, error) {
	return client.New(app.cfg.Client.ServerURL, app.cfg.Client.Token,
		client.WithTimeout(app.cfg.Client.RequestTimeout),
		client.WithLogger(app.logger),
	)
}

// openStore builds a Task Store bound to the session provider. The caller
// must Close it.
func (app *cliApp) openStore(ctx context.Context) (*tracker.Store, error) {
	table, source, err := app.backend()
	if err != nil {
		return nil, err
	}

	store := tracker.NewStore(table,
		tracker.WithLogger(app.logger),
		tracker.WithNotifier(app.renderer().NoticeWriter(app.stderr)),
	)
	if err := store.Bind(ctx, source); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func (app *cliApp) submit(ctx context.Context, args []string) error {
	store, err := app.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.Submit(ctx, strings.Join(args, " ")); err != nil {
		app.logger.Debug("Submit failed", slog.String("error", err.Error()))
		return errReported
	}

	fmt.Fprintln(app.stdout, app.renderer().Tasks(store.Tasks()))
	return nil
}

func (app *cliApp) list(ctx context.Context, args []string) error {
	if len(args) > 0 {
		fmt.Fprintf(app.stderr, "list takes no arguments\n")
		return errUsage
	}

	store, err := app.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if store.Session() == nil {
		fmt.Fprintln(app.stderr, "Not signed in. Pass --token or set client.token.")
	}
	fmt.Fprintln(app.stdout, app.renderer().Tasks(store.Tasks()))
	return nil
}

// watch polls the table every interval and prints the list whenever it
// changes, until ctx is cancelled. Sign-out arrives through the session
// subscription and clears the list.
func (app *cliApp) watch(ctx context.Context, args []string) error {
	interval := app.cfg.Client.PollInterval

	flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	flagSet.SetOutput(app.stderr)
	flagSet.DurationVar(&interval, "interval", interval, "how often to re-read the task list")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}
	if interval <= 0 {
		fmt.Fprintln(app.stderr, "--interval must be greater than 0")
		return errUsage
	}

	store, err := app.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	renderer := app.renderer()
	updates := make(chan []domain.Task, 1)
	cancel := store.SubscribeTasks(func(tasks []domain.Task) {
		// keep only the latest list
		select {
		case <-updates:
		default:
		}
		updates <- tasks
	})
	defer cancel()

	last := renderer.Tasks(store.Tasks())
	fmt.Fprintln(app.stdout, last)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			app.logger.Debug("Watch stopped")
			return nil
		case <-ticker.C:
			// Failures are shown as notices; keep polling
			_ = store.Refresh(ctx)
		case tasks := <-updates:
			out := renderer.Tasks(tasks)
			if out == last {
				continue
			}
			last = out
			fmt.Fprintf(app.stdout, "\n%s\n", out)
		}
	}
}

func (app *cliApp) signOut(ctx context.Context, args []string) error {
	if len(args) > 0 {
		fmt.Fprintf(app.stderr, "signout takes no arguments\n")
		return errUsage
	}
	if app.cfg.Client.Local {
		fmt.Fprintln(app.stderr, "signout is not available with --local")
		return errUsage
	}

	c, err := app.apiClient()
	if err != nil {
		return err
	}
	if !c.HasToken() {
		fmt.Fprintln(app.stderr, "Not signed in.")
		return nil
	}
	if err := c.SignOut(ctx); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}

	fmt.Fprintln(app.stderr, app.renderer().Notice(tracker.Notice{Title: "Signed out"}))
	return nil
}

func (app *cliApp) key(args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(app.stderr, "usage: tracker-cli key set <value> | get | remove")
		return errUsage
	}

	if app.cfg.Client.KeyStorePath == "" {
		app.logger.Warn("client.key_store_path is empty; the API key will not persist")
	}

	store, err := keystore.Open(app.cfg.Client.KeyStorePath, app.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	switch args[0] {
	case "set":
		value := strings.TrimSpace(strings.Join(args[1:], " "))
		if value == "" {
			app.logger.Debug("Ignoring empty API key")
			return nil
		}
		if err := store.Set(value); err != nil {
			return err
		}
		fmt.Fprintln(app.stderr, app.renderer().Notice(tracker.Notice{
			Title:       "API Key Saved",
			Description: "Your Gemini API key has been saved securely",
		}))
		return nil

	case "get":
		value, ok, err := store.Get()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(app.stderr, "No API key saved.")
			return nil
		}
		fmt.Fprintln(app.stdout, value)
		return nil

	case "remove":
		return store.Remove()

	default:
		fmt.Fprintf(app.stderr, "unknown key command %q\n", args[0])
		return errUsage
	}
}

// localSession is the fixed session used with --local. It never changes, so
// Subscribe has nothing to deliver.
type localSession struct {
	session *tracker.Session
}

func (l localSession) Current(context.Context) (*tracker.Session, error) {
	return l.session, nil
}

func (l localSession) Subscribe(context.Context, func(tracker.SessionEvent)) (io.Closer, error) {
	return nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
