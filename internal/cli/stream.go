package cli

import (
	"context"
	"sync"
	"time"
)

// streamSink turns the terminal event of a subscription into a command result.
type streamSink struct {
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

func newStreamSink() *streamSink {
	return &streamSink{done: make(chan struct{})}
}

func (s *streamSink) fail(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *streamSink) complete() {
	s.once.Do(func() { close(s.done) })
}

// Done is closed once the stream completed or failed.
func (s *streamSink) Done() <-chan struct{} {
	return s.done
}

// Err returns the stream error, or nil while running or after completion.
func (s *streamSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// result maps the stream outcome to the command error.
func (s *streamSink) result() error {
	if err := s.Err(); err != nil {
		return WrapExitError(ExitFailure, "stream failed", err)
	}
	return nil
}

// await blocks until done is closed, runFor elapses or ctx is cancelled.
// A zero runFor waits without a deadline.
func await(ctx context.Context, done <-chan struct{}, runFor time.Duration) {
	var deadline <-chan time.Time
	if runFor > 0 {
		timer := time.NewTimer(runFor)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-done:
	case <-deadline:
	case <-ctx.Done():
	}
}
