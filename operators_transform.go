// Transformation operators for rxstream
// 转换操作符：按数量缓冲、映射、截取
package rxstream

import (
	"fmt"
	"sync"
)

// ============================================================================
// BufferWithCount
// ============================================================================

// bufferCountState 按数量缓冲的窗口状态
type bufferCountState[T any] struct {
	downstream Subscriber[[]T]
	count      int
	mu         sync.Mutex
	window     []T
}

func (b *bufferCountState[T]) OnNext(value T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.window = append(b.window, value)
	if len(b.window) == b.count {
		// 缓冲区已满，发出缓冲区
		batch := b.window
		b.window = make([]T, 0, b.count)
		b.downstream.OnNext(batch)
	}
}

func (b *bufferCountState[T]) IsDisposed() bool {
	return b.downstream.IsDisposed()
}

func (b *bufferCountState[T]) OnError(err error) {
	b.mu.Lock()
	b.window = nil
	b.mu.Unlock()

	b.downstream.OnError(err)
}

func (b *bufferCountState[T]) OnComplete() {
	b.mu.Lock()
	// 源Observable完成，发出剩余的缓冲区
	if len(b.window) > 0 {
		b.downstream.OnNext(b.window)
	}
	b.window = nil
	b.mu.Unlock()

	b.downstream.OnComplete()
}

// BufferWithCount 将源的值按 count 个一组发出，完成时发出不满的最后一组
func BufferWithCount[T any](source Observable[T], count int) (Observable[[]T], error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if count <= 0 {
		return nil, fmt.Errorf("buffer count %d: %w", count, ErrInvalidCount)
	}

	return newObservable(func(s Subscriber[[]T]) {
		state := &bufferCountState[T]{
			downstream: s,
			count:      count,
			window:     make([]T, 0, count),
		}
		s.Add(source.Subscribe(state))
	}), nil
}

// ============================================================================
// Map
// ============================================================================

// mapState 映射状态，转换函数返回的错误终止下游
type mapState[T, R any] struct {
	downstream Subscriber[R]
	transform  func(T) (R, error)
}

func (m *mapState[T, R]) OnNext(value T) {
	result, err := m.transform(value)
	if err != nil {
		m.downstream.OnError(err)
		return
	}
	m.downstream.OnNext(result)
}

func (m *mapState[T, R]) IsDisposed() bool {
	return m.downstream.IsDisposed()
}

func (m *mapState[T, R]) OnError(err error) {
	m.downstream.OnError(err)
}

func (m *mapState[T, R]) OnComplete() {
	m.downstream.OnComplete()
}

// Map 转换操作符
func Map[T, R any](source Observable[T], transform func(T) (R, error)) (Observable[R], error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if transform == nil {
		return nil, ErrNilTransformer
	}

	return newObservable(func(s Subscriber[R]) {
		s.Add(source.Subscribe(&mapState[T, R]{downstream: s, transform: transform}))
	}), nil
}

// ============================================================================
// Take
// ============================================================================

// takeState 取前N个元素的计数状态
type takeState[T any] struct {
	downstream Subscriber[T]
	mu         sync.Mutex
	remaining  int
}

func (t *takeState[T]) OnNext(value T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.remaining == 0 {
		return
	}
	t.remaining--
	t.downstream.OnNext(value)
	if t.remaining == 0 {
		t.downstream.OnComplete()
	}
}

func (t *takeState[T]) IsDisposed() bool {
	return t.downstream.IsDisposed()
}

func (t *takeState[T]) OnError(err error) {
	t.downstream.OnError(err)
}

func (t *takeState[T]) OnComplete() {
	t.downstream.OnComplete()
}

// Take 取前 count 个元素后完成并释放上游
func Take[T any](source Observable[T], count int) (Observable[T], error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if count < 0 {
		return nil, fmt.Errorf("take count %d: %w", count, ErrNegativeCount)
	}

	return newObservable(func(s Subscriber[T]) {
		if count == 0 {
			s.OnComplete()
			return
		}
		s.Add(source.Subscribe(&takeState[T]{downstream: s, remaining: count}))
	}), nil
}
