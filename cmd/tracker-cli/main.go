package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cuongbtq/task-tracker/internal/config"
	"github.com/cuongbtq/task-tracker/shared/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const usage = `tracker-cli submits AI tasks and follows their progress.

Usage:
  tracker-cli [global flags] <command> [arguments]

Commands:
  submit <description...>   add a task for the signed-in user
  list                      print your tasks, newest first
  watch [--interval 5s]     re-render your tasks as they change
  signout                   end the current session
  key set <value>           save your Gemini API key
  key get                   print the saved Gemini API key
  key remove                delete the saved Gemini API key

Global flags:
`

var (
	// errUsage is returned for bad invocations; main exits with status 2
	errUsage = errors.New("usage error")
	// errReported means the failure was already shown as a notice
	errReported = errors.New("failure reported")
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		os.Exit(2)
	case errors.Is(err, errReported):
		os.Exit(1)
	default:
		log.New(os.Stderr, "", 0).Printf("tracker-cli: %v", err)
		os.Exit(1)
	}
}

// globalOptions are the flags accepted before the command name
type globalOptions struct {
	configPath string
	server     string
	token      string
	local      bool
	user       string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts globalOptions

	defaultConfigPath := os.Getenv("TRACKER_CLI_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/tracker-cli/config.yaml"
	}

	flagSet := pflag.NewFlagSet("tracker-cli", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&opts.configPath, "config", defaultConfigPath, "path to configuration file")
	flagSet.StringVar(&opts.server, "server", "", "api-service base URL (overrides client.server_url)")
	flagSet.StringVar(&opts.token, "token", "", "session token (overrides client.token)")
	flagSet.BoolVar(&opts.local, "local", false, "keep tasks in memory instead of calling the api-service")
	flagSet.StringVar(&opts.user, "user", "local-user", "user id for the local session (with --local)")
	flagSet.Usage = func() {
		fmt.Fprint(stderr, usage)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return errUsage
	}

	cfg, err := loadConfig(opts.configPath, flagSet.Changed("config"))
	if err != nil {
		return err
	}
	opts.apply(cfg)

	if err := cfg.ValidateClientConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableCaller,
		TimeFormat:   time.TimeOnly,
		NoColor:      cfg.Logging.NoColor,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	app := &cliApp{
		cfg:       cfg,
		logger:    appLogger.Logger,
		stdout:    stdout,
		stderr:    stderr,
		localUser: opts.user,
	}
	return app.dispatch(ctx, rest[0], rest[1:])
}

// loadConfig reads path. A missing file at the default location falls back
// to built-in defaults; a missing file the user named is an error.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg = config.Default()
	cfg.Client.Token = os.Getenv("TRACKER_TOKEN")
	cfg.Logging.Level = "warn"
	cfg.Logging.Output = "stderr"
	if home, err := os.UserHomeDir(); err == nil {
		cfg.Client.KeyStorePath = filepath.Join(home, ".task-tracker", "keys")
	}
	return cfg, nil
}

func (opts globalOptions) apply(cfg *config.Config) {
	if opts.server != "" {
		cfg.Client.ServerURL = opts.server
	}
	if opts.token != "" {
		cfg.Client.Token = opts.token
	}
	if opts.local {
		cfg.Client.Local = true
	}
}
