// Time-based operators for rxstream
// 时间操作符：按时间缓冲、时间戳
package rxstream

import (
	"fmt"
	"sync"
	"time"
)

// ============================================================================
// BufferWithTime
// ============================================================================

// bufferTimeState 按时间缓冲的窗口状态，由调度器周期性刷新
type bufferTimeState[T any] struct {
	downstream Subscriber[[]T]
	mu         sync.Mutex
	window     []T
	closed     bool
}

// flush 发出当前窗口，即使窗口为空也发出空批次
func (b *bufferTimeState[T]) flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	batch := b.window
	b.window = make([]T, 0, len(batch))
	b.downstream.OnNext(batch)
}

func (b *bufferTimeState[T]) OnNext(value T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.window = append(b.window, value)
}

func (b *bufferTimeState[T]) IsDisposed() bool {
	return b.downstream.IsDisposed()
}

func (b *bufferTimeState[T]) OnError(err error) {
	b.mu.Lock()
	b.closed = true
	b.window = nil
	b.mu.Unlock()

	b.downstream.OnError(err)
}

func (b *bufferTimeState[T]) OnComplete() {
	b.mu.Lock()
	var rest []T
	if !b.closed {
		rest = b.window
	}
	b.closed = true
	b.window = nil
	b.mu.Unlock()

	if len(rest) > 0 {
		b.downstream.OnNext(rest)
	}
	b.downstream.OnComplete()
}

// BufferWithTime 将源的值收集到窗口中，每隔 timespan 发出一次窗口（可能为空）。
// 源完成时发出非空的剩余窗口
func BufferWithTime[T any](source Observable[T], timespan time.Duration, scheduler Scheduler) (Observable[[]T], error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if scheduler == nil {
		return nil, ErrNilScheduler
	}
	if timespan <= 0 {
		return nil, fmt.Errorf("buffer timespan %v: %w", timespan, ErrInvalidPeriod)
	}

	return newObservable(func(s Subscriber[[]T]) {
		state := &bufferTimeState[T]{
			downstream: s,
			window:     make([]T, 0),
		}
		s.Add(scheduler.SchedulePeriodic(guard(s, state.flush), timespan, timespan))
		s.Add(source.Subscribe(state))
	}), nil
}

// ============================================================================
// Timestamp
// ============================================================================

// Timestamped 带时间戳的值
type Timestamped[T any] struct {
	Value     T
	Timestamp time.Time
}

// Timestamp 为每个值附加调度器的当前时间
func Timestamp[T any](source Observable[T], scheduler Scheduler) (Observable[Timestamped[T]], error) {
	if scheduler == nil {
		return nil, ErrNilScheduler
	}

	return Map(source, func(value T) (Timestamped[T], error) {
		return Timestamped[T]{Value: value, Timestamp: scheduler.Now()}, nil
	})
}
