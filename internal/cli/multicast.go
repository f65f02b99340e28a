package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/xinjiayu/rxstream"
	"github.com/xinjiayu/rxstream/internal/config"
)

// intervalFlags are shared by the cold and hot commands.
type intervalFlags struct {
	interval       time.Duration
	runFor         time.Duration
	subscribeAfter time.Duration
}

func (f *intervalFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.interval, "interval", 0, "time between ticks (default from config)")
	cmd.Flags().DurationVar(&f.runFor, "run-for", 0, "how long to observe (default from config)")
	cmd.Flags().DurationVar(&f.subscribeAfter, "subscribe-after", 0, "delay before observer 2 subscribes (default from config)")
}

func (f *intervalFlags) apply(cmd *cobra.Command, cfg config.Config) config.Config {
	if cmd.Flags().Changed("interval") {
		cfg.Interval = f.interval
	}
	if cmd.Flags().Changed("run-for") {
		cfg.RunFor = f.runFor
	}
	if cmd.Flags().Changed("subscribe-after") {
		cfg.SubscribeAfter = f.subscribeAfter
	}
	return cfg
}

// printTicks returns callbacks printing ticks labelled with the observer name.
func printTicks(out *console, name string, sink *streamSink) (rxstream.OnNext[int64], rxstream.OnError, rxstream.OnComplete) {
	return func(v int64) {
			out.Println(fmt.Sprintf("%s: OnNext: %d", name, v))
		},
		func(err error) {
			out.Println(fmt.Sprintf("%s: OnError: %v", name, err))
			sink.fail(err)
		},
		func() {
			out.Println(fmt.Sprintf("%s: OnComplete", name))
		}
}

// NewColdCommand creates the cold command: two subscriptions to one interval,
// each running its own timer and counter.
func NewColdCommand(rootOpts *RootOptions) *cobra.Command {
	var flags intervalFlags

	cmd := &cobra.Command{
		Use:   "cold",
		Short: "Show that every subscriber of an interval gets its own sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := flags.apply(cmd, rootOpts.Config)
			if err := rootOpts.validate(cfg); err != nil {
				return err
			}

			scheduler, stop, err := rootOpts.newScheduler(cfg)
			if err != nil {
				return err
			}
			defer stop()

			ticks, err := rxstream.Interval(cfg.Interval, scheduler)
			if err != nil {
				return WrapExitError(ExitCommandError, "build interval", err)
			}

			out := newConsole(cmd.OutOrStdout())
			sink := newStreamSink()
			subs := rxstream.NewCompositeDisposable()
			defer subs.Dispose()

			subs.Add(ticks.SubscribeWithCallbacks(printTicks(out, "Observer 1", sink)))
			subs.Add(scheduler.ScheduleWithDelay(func() {
				rootOpts.Logger.Debug("subscribing observer 2")
				subs.Add(ticks.SubscribeWithCallbacks(printTicks(out, "Observer 2", sink)))
			}, cfg.SubscribeAfter))

			await(cmd.Context(), sink.Done(), cfg.RunFor)
			return sink.result()
		},
	}

	flags.register(cmd)
	return cmd
}

// NewHotCommand creates the hot command: one published interval shared by
// an early and a late observer.
func NewHotCommand(rootOpts *RootOptions) *cobra.Command {
	var flags intervalFlags

	cmd := &cobra.Command{
		Use:   "hot",
		Short: "Show that late subscribers of a published interval only see new values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := flags.apply(cmd, rootOpts.Config)
			if err := rootOpts.validate(cfg); err != nil {
				return err
			}

			scheduler, stop, err := rootOpts.newScheduler(cfg)
			if err != nil {
				return err
			}
			defer stop()

			ticks, err := rxstream.Interval(cfg.Interval, scheduler)
			if err != nil {
				return WrapExitError(ExitCommandError, "build interval", err)
			}
			hot, err := rxstream.Publish(ticks)
			if err != nil {
				return WrapExitError(ExitCommandError, "publish interval", err)
			}

			out := newConsole(cmd.OutOrStdout())
			sink := newStreamSink()
			subs := rxstream.NewCompositeDisposable()
			defer subs.Dispose()

			subs.Add(hot.SubscribeWithCallbacks(printTicks(out, "Observer 1", sink)))

			conn := hot.ConnectWithContext(cmd.Context())
			subs.Add(conn)
			rootOpts.Logger.Info("connected",
				slog.Duration("interval", cfg.Interval),
				slog.Duration("subscribe_after", cfg.SubscribeAfter),
			)

			subs.Add(scheduler.ScheduleWithDelay(func() {
				rootOpts.Logger.Debug("subscribing observer 2")
				subs.Add(hot.SubscribeWithCallbacks(printTicks(out, "Observer 2", sink)))
			}, cfg.SubscribeAfter))

			await(cmd.Context(), sink.Done(), cfg.RunFor)
			return sink.result()
		},
	}

	flags.register(cmd)
	return cmd
}
