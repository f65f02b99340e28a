package cli

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/xinjiayu/rxstream"
	"github.com/xinjiayu/rxstream/internal/mail"
)

// NewEmailsCommand creates the emails command: a burst of generated emails
// grouped into time windows.
func NewEmailsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		count    int
		timespan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "emails",
		Short: "Buffer generated emails into time windows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if cmd.Flags().Changed("count") {
				cfg.EmailCount = count
			}
			if cmd.Flags().Changed("timespan") {
				cfg.BufferTimespan = timespan
			}
			if err := rootOpts.validate(cfg); err != nil {
				return err
			}

			scheduler, stop, err := rootOpts.newScheduler(cfg)
			if err != nil {
				return err
			}
			defer stop()

			emails, err := rxstream.FromSeq(mail.Produce(cfg.EmailCount))
			if err != nil {
				return WrapExitError(ExitCommandError, "build email source", err)
			}
			windows, err := rxstream.BufferWithTime(emails, cfg.BufferTimespan, scheduler)
			if err != nil {
				return WrapExitError(ExitCommandError, "build buffer", err)
			}
			windows, err = rxstream.DoOnTerminate(windows, func() {
				rootOpts.Logger.Debug("email stream terminated")
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "build terminate hook", err)
			}

			out := newConsole(cmd.OutOrStdout())
			printer := message.NewPrinter(language.English)
			sink := newStreamSink()
			started := time.Now()

			sub := windows.SubscribeWithCallbacks(
				func(batch []mail.Email) {
					if len(batch) == 0 {
						return
					}
					out.Println(printer.Sprintf("You have %d emails to read.", len(batch)))
					for _, email := range batch {
						out.Println(email.String())
					}
				},
				sink.fail,
				sink.complete,
			)
			defer sub.Dispose()

			await(cmd.Context(), sink.Done(), 0)
			rootOpts.Logger.Info("emails processed",
				slog.Int("count", cfg.EmailCount),
				slog.Duration("took", time.Since(started)),
			)
			return sink.result()
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "number of emails to generate (default from config)")
	cmd.Flags().DurationVar(&timespan, "timespan", 0, "buffer window length (default from config)")

	return cmd
}
