// Observable implementation for rxstream
// Observable 和订阅者的核心实现，负责订阅契约的强制执行
package rxstream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// ============================================================================
// Observable 核心实现
// ============================================================================

// observableImpl Observable的核心实现，每次订阅都独立运行生产函数（冷）
type observableImpl[T any] struct {
	onSubscribe func(subscriber Subscriber[T])
}

// Create 从生产函数创建Observable。生产函数在每次订阅时调用，
// 通过 Subscriber.Add 关联需要在取消订阅时释放的资源
func Create[T any](onSubscribe func(subscriber Subscriber[T])) (Observable[T], error) {
	if onSubscribe == nil {
		return nil, ErrNilProducer
	}
	return newObservable(onSubscribe), nil
}

// newObservable 内部构造，调用方保证 onSubscribe 非空
func newObservable[T any](onSubscribe func(subscriber Subscriber[T])) Observable[T] {
	return &observableImpl[T]{onSubscribe: onSubscribe}
}

// Subscribe 订阅观察者
func (o *observableImpl[T]) Subscribe(observer Observer[T]) Disposable {
	if observer == nil {
		observer = NewObserver[T](nil, nil, nil)
	}

	s := newSubscriber(observer)
	s.run(o.onSubscribe)
	return s
}

// SubscribeWithCallbacks 使用回调函数订阅
func (o *observableImpl[T]) SubscribeWithCallbacks(onNext OnNext[T], onError OnError, onComplete OnComplete) Disposable {
	return o.Subscribe(NewObserver(onNext, onError, onComplete))
}

// ============================================================================
// 订阅者
// ============================================================================

// disposalAware 能报告自身下游是否已经结束的观察者，操作符的内部状态都实现它
type disposalAware interface {
	IsDisposed() bool
}

// eventKind 排队事件的种类
type eventKind uint8

const (
	eventNext eventKind = iota
	eventError
	eventComplete
)

// event 等待投递的事件
type event[T any] struct {
	kind  eventKind
	value T
	err   error
}

// subscriber 包装下游观察者：串行投递、终止事件只投递一次、释放后不再投递。
// 投递不持锁：正在投递的goroutine负责排空队列，其他调用方（包括观察者回调自身）只入队
type subscriber[T any] struct {
	observer   Observer[T]
	mu         sync.Mutex
	emitting   bool
	terminated bool
	queue      []event[T]
	stopped    atomic.Bool
	disposed   atomic.Bool
	resources  *CompositeDisposable
	ctx        context.Context
	cancel     context.CancelFunc
}

func newSubscriber[T any](observer Observer[T]) *subscriber[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &subscriber[T]{
		observer:  observer,
		resources: NewCompositeDisposable(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// run 执行生产函数，生产过程中的panic转换为错误事件
func (s *subscriber[T]) run(onSubscribe func(Subscriber[T])) {
	guard[T](s, func() { onSubscribe(s) })()
}

// guard 包装在调度器上运行的生产动作，其中的panic同样转换为订阅的错误事件
func guard[T any](s Subscriber[T], action func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.OnError(fmt.Errorf("%w: %v", ErrProducerPanic, r))
			}
		}()
		action()
	}
}

// OnNext 发送下一个值
func (s *subscriber[T]) OnNext(value T) {
	s.emit(event[T]{kind: eventNext, value: value})
}

// OnError 发送错误并终止订阅
func (s *subscriber[T]) OnError(err error) {
	s.emit(event[T]{kind: eventError, err: err})
}

// OnComplete 发送完成信号并终止订阅
func (s *subscriber[T]) OnComplete() {
	s.emit(event[T]{kind: eventComplete})
}

// emit 入队事件；没有其他goroutine在投递时由当前goroutine排空队列
func (s *subscriber[T]) emit(ev event[T]) {
	if s.stopped.Load() {
		return
	}

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	if ev.kind != eventNext {
		s.terminated = true
	}
	if s.emitting {
		s.queue = append(s.queue, ev)
		s.mu.Unlock()
		return
	}
	s.emitting = true
	s.mu.Unlock()

	s.drain(ev)
}

func (s *subscriber[T]) drain(ev event[T]) {
	finished := false
	defer func() {
		if !finished {
			// 观察者panic：放弃剩余事件，让恢复逻辑可以重新投递错误
			s.mu.Lock()
			s.emitting = false
			s.terminated = s.stopped.Load()
			s.queue = nil
			s.mu.Unlock()
		}
	}()

	for {
		s.deliver(ev)

		s.mu.Lock()
		if len(s.queue) == 0 {
			s.emitting = false
			s.mu.Unlock()
			finished = true
			return
		}
		ev = s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
	}
}

func (s *subscriber[T]) deliver(ev event[T]) {
	if ev.kind == eventNext {
		if !s.stopped.Load() {
			s.observer.OnNext(ev.value)
		}
		return
	}

	if s.stopped.Swap(true) {
		return
	}
	// 终止后向上游逐层释放
	defer s.release()

	if ev.kind == eventError {
		s.observer.OnError(ev.err)
	} else {
		s.observer.OnComplete()
	}
}

// Dispose 取消订阅。不等待正在执行的回调，因此可以在回调内部调用
func (s *subscriber[T]) Dispose() {
	if s.disposed.CompareAndSwap(false, true) {
		s.stopped.Store(true)
		s.release()
	}
}

// IsDisposed 订阅已释放、已终止，或下游已不再接收数据时返回true。
// 同步源在 Subscribe 返回之前就依赖它停止发射
func (s *subscriber[T]) IsDisposed() bool {
	if s.stopped.Load() {
		return true
	}
	if d, ok := s.observer.(disposalAware); ok {
		return d.IsDisposed()
	}
	return false
}

// Add 关联上游资源
func (s *subscriber[T]) Add(disposable Disposable) {
	s.resources.Add(disposable)
}

// Context 返回订阅的上下文
func (s *subscriber[T]) Context() context.Context {
	return s.ctx
}

func (s *subscriber[T]) release() {
	s.cancel()
	s.resources.Dispose()
}
