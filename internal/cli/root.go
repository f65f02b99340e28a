package cli

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/xinjiayu/rxstream"
	"github.com/xinjiayu/rxstream/internal/config"
)

// RootOptions holds global flags and the state PersistentPreRunE prepares for subcommands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Scheduler  string

	Config config.Config
	Logger *slog.Logger
}

// NewRootCommand creates the root command for the rxdemo CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rxdemo",
		Short: "rxdemo - reactive stream demos",
		Long: `Demo programs for the rxstream engine.

Each command builds a small pipeline (ranges, timers, buffers, zips,
published streams) and prints the events it observes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")
	cmd.PersistentFlags().StringVar(&opts.Scheduler, "scheduler", "", "scheduler for timed operators (new_thread|pool)")

	cmd.AddCommand(NewSimpleCommand(opts))
	cmd.AddCommand(NewSequenceCommand(opts))
	cmd.AddCommand(NewTimerCommand(opts))
	cmd.AddCommand(NewColdCommand(opts))
	cmd.AddCommand(NewHotCommand(opts))
	cmd.AddCommand(NewEmailsCommand(opts))
	cmd.AddCommand(NewDirsCommand(opts))

	return cmd
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "load config", err)
		}
		cfg = loaded
	}
	if o.Scheduler != "" {
		cfg.Scheduler = o.Scheduler
	}
	o.Config = cfg

	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})).With(
		slog.String("run_id", uuid.NewString()),
		slog.String("command", cmd.Name()),
	)
	rxstream.SetLogger(o.Logger)

	return nil
}

// validate checks the effective config after command flags were applied.
func (o *RootOptions) validate(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	return nil
}

// newScheduler builds the configured scheduler wrapped with metrics.
// The returned stop function logs task counts and releases pool workers.
func (o *RootOptions) newScheduler(cfg config.Config) (*rxstream.MonitoredScheduler, func(), error) {
	var (
		inner   rxstream.Scheduler
		release = func() {}
	)
	switch cfg.Scheduler {
	case config.SchedulerPool:
		pool := rxstream.NewThreadPoolScheduler(cfg.Workers)
		inner, release = pool, pool.Close
	default:
		inner = rxstream.NewNewThreadScheduler()
	}

	scheduler, err := rxstream.NewMonitoredScheduler(inner, nil, cfg.Scheduler)
	if err != nil {
		release()
		return nil, nil, WrapExitError(ExitCommandError, "create scheduler", err)
	}

	stop := func() {
		stats := scheduler.Stats()
		o.Logger.Debug("scheduler stopped",
			slog.String("scheduler", cfg.Scheduler),
			slog.Int64("scheduled", stats.TasksScheduled),
			slog.Int64("completed", stats.TasksCompleted),
			slog.Int64("failed", stats.TasksFailed),
		)
		release()
	}
	return scheduler, stop, nil
}
