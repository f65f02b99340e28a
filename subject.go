// Subject implementation for rxstream
// PublishSubject：只向当前订阅者发送新的值，是热Observable的多播核心
package rxstream

import (
	"sync"
	"sync/atomic"
)

// PublishSubject 发布主题，既是Observer又是Observable。
// 订阅者只收到订阅之后发出的值；主题终止后新的订阅者立即收到终止事件
type PublishSubject[T any] struct {
	registry   *observerRegistry[T]
	mu         sync.Mutex
	terminated atomic.Bool
	err        error
}

// NewPublishSubject 创建新的发布主题
func NewPublishSubject[T any]() *PublishSubject[T] {
	return &PublishSubject[T]{
		registry: newObserverRegistry[T](),
	}
}

// Subscribe 订阅观察者，返回的Disposable把观察者从注册表中移除
func (ps *PublishSubject[T]) Subscribe(observer Observer[T]) Disposable {
	if observer == nil {
		observer = NewObserver[T](nil, nil, nil)
	}
	s := newSubscriber(observer)

	ps.mu.Lock()
	if ps.terminated.Load() {
		err := ps.err
		ps.mu.Unlock()

		if err != nil {
			s.OnError(err)
		} else {
			s.OnComplete()
		}
		return s
	}
	handle := ps.registry.add(s)
	ps.mu.Unlock()

	s.Add(NewBaseDisposable(func() {
		ps.registry.remove(handle)
	}))
	return s
}

// SubscribeWithCallbacks 使用回调函数订阅
func (ps *PublishSubject[T]) SubscribeWithCallbacks(onNext OnNext[T], onError OnError, onComplete OnComplete) Disposable {
	return ps.Subscribe(NewObserver(onNext, onError, onComplete))
}

// OnNext 向发送时刻已注册的观察者发送值
func (ps *PublishSubject[T]) OnNext(value T) {
	if ps.terminated.Load() {
		return
	}

	// 同步调用观察者以保证顺序
	for _, observer := range ps.registry.snapshot() {
		observer.OnNext(value)
	}
}

// OnError 发送错误
func (ps *PublishSubject[T]) OnError(err error) {
	if !ps.terminate(err) {
		return
	}
	for _, observer := range ps.registry.snapshot() {
		observer.OnError(err)
	}
}

// OnComplete 发送完成信号
func (ps *PublishSubject[T]) OnComplete() {
	if !ps.terminate(nil) {
		return
	}
	for _, observer := range ps.registry.snapshot() {
		observer.OnComplete()
	}
}

func (ps *PublishSubject[T]) terminate(err error) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.terminated.Load() {
		return false
	}
	ps.err = err
	ps.terminated.Store(true)
	return true
}

// HasObservers 检查是否有观察者
func (ps *PublishSubject[T]) HasObservers() bool {
	return ps.registry.len() > 0
}

// ObserverCount 获取观察者数量
func (ps *PublishSubject[T]) ObserverCount() int {
	return ps.registry.len()
}
