package cli

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/xinjiayu/rxstream"
	"github.com/xinjiayu/rxstream/internal/walker"
)

// NewDirsCommand creates the dirs command: directory batches released one per tick.
func NewDirsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		interval   time.Duration
		bufferSize int
	)

	cmd := &cobra.Command{
		Use:   "dirs <root>",
		Short: "List directories under root in batches, one batch per tick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if cmd.Flags().Changed("interval") {
				cfg.Interval = interval
			}
			if cmd.Flags().Changed("buffer-size") {
				cfg.BufferSize = bufferSize
			}
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
			dirs, err := rxstream.FromSequence(walker.New(args[0], rootOpts.Logger).Directories())
			if err != nil {
				return WrapExitError(ExitCommandError, "build directory source", err)
			}
			batches, err := rxstream.BufferWithCount(dirs, cfg.BufferSize)
			if err != nil {
				return WrapExitError(ExitCommandError, "build buffer", err)
			}
			paced, err := rxstream.Zip(ticks, batches, func(tick int64, batch []string) ([]string, error) {
				rootOpts.Logger.Debug("releasing batch",
					slog.Int64("tick", tick),
					slog.Int("size", len(batch)),
				)
				return batch, nil
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "build zip", err)
			}
			paced, err = rxstream.Log(paced, "dirs")
			if err != nil {
				return WrapExitError(ExitCommandError, "build log", err)
			}

			out := newConsole(cmd.OutOrStdout())
			sink := newStreamSink()
			sub := paced.SubscribeWithCallbacks(
				func(batch []string) {
					for _, dir := range batch {
						out.Println(dir)
					}
				},
				sink.fail,
				sink.complete,
			)
			defer sub.Dispose()

			await(cmd.Context(), sink.Done(), 0)
			return sink.result()
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "time between batches (default from config)")
	cmd.Flags().IntVar(&bufferSize, "buffer-size", 0, "directories per batch (default from config)")

	return cmd
}
