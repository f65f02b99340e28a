package rxstream

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder 记录所有事件的测试观察者
type recorder[T any] struct {
	mu          sync.Mutex
	values      []T
	errs        []error
	completions int
	done        chan struct{}
	once        sync.Once
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{done: make(chan struct{})}
}

func (r *recorder[T]) OnNext(value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, value)
}

func (r *recorder[T]) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

func (r *recorder[T]) OnComplete() {
	r.mu.Lock()
	r.completions++
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

func (r *recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}

func (r *recorder[T]) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder[T]) Completions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completions
}

// Events 收到的事件总数
func (r *recorder[T]) Events() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values) + len(r.errs) + r.completions
}

// Wait 等待终止事件
func (r *recorder[T]) Wait(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(timeout):
		require.FailNow(t, "timed out waiting for terminal event")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
