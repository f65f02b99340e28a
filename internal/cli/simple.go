package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xinjiayu/rxstream"
)

// NewSimpleCommand creates the simple command: a range of integers printed as events.
func NewSimpleCommand(rootOpts *RootOptions) *cobra.Command {
	var start, count int

	cmd := &cobra.Command{
		Use:   "simple",
		Short: "Print a range of integers as observable events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := rxstream.Range(start, count)
			if err != nil {
				return WrapExitError(ExitCommandError, "build range", err)
			}
			return runEvents(cmd, rootOpts, source)
		},
	}

	cmd.Flags().IntVar(&start, "start", 1, "first integer")
	cmd.Flags().IntVar(&count, "count", 10, "number of integers")

	return cmd
}

// NewSequenceCommand creates the sequence command: a fixed slice turned into a stream.
func NewSequenceCommand(rootOpts *RootOptions) *cobra.Command {
	var values []int

	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Print a sequence of values as observable events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := rxstream.FromSlice(values)
			if err != nil {
				return WrapExitError(ExitCommandError, "build sequence", err)
			}
			return runEvents(cmd, rootOpts, source)
		},
	}

	cmd.Flags().IntSliceVar(&values, "values", []int{1, 2, 3, 4, 5}, "values to emit")

	return cmd
}

// runEvents subscribes to a finite source and prints every event.
func runEvents[T any](cmd *cobra.Command, opts *RootOptions, source rxstream.Observable[T]) error {
	out := newConsole(cmd.OutOrStdout())
	sink := newStreamSink()

	sub := source.SubscribeWithCallbacks(
		func(v T) { out.Println(fmt.Sprintf("OnNext: %v", v)) },
		func(err error) {
			out.Println(fmt.Sprintf("OnError: %v", err))
			sink.fail(err)
		},
		func() {
			out.Println("OnComplete")
			sink.complete()
		},
	)
	defer sub.Dispose()

	await(cmd.Context(), sink.Done(), 0)
	opts.Logger.Debug("stream finished")
	return sink.result()
}
