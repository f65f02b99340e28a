package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/xinjiayu/rxstream"
)

const timestampLayout = "15:04:05.000"

// NewTimerCommand creates the timer command: a delayed periodic timer with timestamps.
func NewTimerCommand(rootOpts *RootOptions) *cobra.Command {
	var delay, period, runFor time.Duration

	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Emit timestamped ticks after an initial delay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if cmd.Flags().Changed("delay") {
				cfg.TimerDelay = delay
			}
			if cmd.Flags().Changed("period") {
				cfg.TimerPeriod = period
			}
			if cmd.Flags().Changed("run-for") {
				cfg.RunFor = runFor
			}
			if err := rootOpts.validate(cfg); err != nil {
				return err
			}

			scheduler, stop, err := rootOpts.newScheduler(cfg)
			if err != nil {
				return err
			}
			defer stop()

			ticks, err := rxstream.PeriodicTimer(cfg.TimerDelay, cfg.TimerPeriod, scheduler)
			if err != nil {
				return WrapExitError(ExitCommandError, "build timer", err)
			}
			stamped, err := rxstream.Timestamp(ticks, scheduler)
			if err != nil {
				return WrapExitError(ExitCommandError, "build timestamp", err)
			}

			out := newConsole(cmd.OutOrStdout())
			sink := newStreamSink()
			sub := stamped.SubscribeWithCallbacks(
				func(v rxstream.Timestamped[int64]) {
					out.Println(fmt.Sprintf("OnNext: %d @ %s", v.Value, v.Timestamp.Format(timestampLayout)))
				},
				sink.fail,
				sink.complete,
			)
			defer sub.Dispose()

			rootOpts.Logger.Info("timer started",
				slog.Duration("delay", cfg.TimerDelay),
				slog.Duration("period", cfg.TimerPeriod),
				slog.Duration("run_for", cfg.RunFor),
			)
			await(cmd.Context(), sink.Done(), cfg.RunFor)
			return sink.result()
		},
	}

	cmd.Flags().DurationVar(&delay, "delay", 0, "delay before the first tick (default from config)")
	cmd.Flags().DurationVar(&period, "period", 0, "time between ticks (default from config)")
	cmd.Flags().DurationVar(&runFor, "run-for", 0, "how long to observe before disposing (default from config)")

	return cmd
}
