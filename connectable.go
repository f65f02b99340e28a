// ConnectableObservable implementation for rxstream
// 可连接的Observable：延迟到 Connect 才订阅源，并把唯一的上游订阅多播给所有观察者
package rxstream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ConnectableObservable 可连接的Observable接口，支持多播
type ConnectableObservable[T any] interface {
	Observable[T]

	// Connect 订阅源并开始向观察者发射数据。已连接时返回现有连接
	Connect() Disposable

	// ConnectWithContext 带上下文的连接，上下文取消时释放连接
	ConnectWithContext(ctx context.Context) Disposable

	// IsConnected 检查连接是否仍在转发源的事件
	IsConnected() bool

	// AutoConnect 当订阅者数量达到 subscriberCount 时自动连接
	AutoConnect(subscriberCount int) Observable[T]
}

// connection 到源的唯一订阅。释放后不再向任何观察者转发，也不会重新连接
type connection struct {
	closed   atomic.Bool
	upstream *CompositeDisposable
	onClose  func()
}

func (c *connection) Dispose() {
	if c.closed.CompareAndSwap(false, true) {
		c.upstream.Dispose()
		c.onClose()
	}
}

func (c *connection) IsDisposed() bool {
	return c.closed.Load()
}

// connectionObserver 源的内部观察者，把事件转发给主题
type connectionObserver[T any] struct {
	conn       *connection
	subject    *PublishSubject[T]
	terminated func()
}

func (o *connectionObserver[T]) OnNext(value T) {
	if o.conn.IsDisposed() {
		return
	}
	o.subject.OnNext(value)
}

func (o *connectionObserver[T]) IsDisposed() bool {
	return o.conn.IsDisposed()
}

func (o *connectionObserver[T]) OnError(err error) {
	if o.conn.IsDisposed() {
		return
	}
	o.terminated()
	o.subject.OnError(err)
}

func (o *connectionObserver[T]) OnComplete() {
	if o.conn.IsDisposed() {
		return
	}
	o.terminated()
	o.subject.OnComplete()
}

// connectableObservableImpl ConnectableObservable的核心实现
type connectableObservableImpl[T any] struct {
	source     Observable[T]
	subject    *PublishSubject[T]
	mu         sync.Mutex
	connection *connection
	connected  atomic.Bool
}

// Publish 将冷Observable转换为ConnectableObservable，不订阅源
func Publish[T any](source Observable[T]) (ConnectableObservable[T], error) {
	if source == nil {
		return nil, ErrNilSource
	}

	return &connectableObservableImpl[T]{
		source:  source,
		subject: NewPublishSubject[T](),
	}, nil
}

// Subscribe 注册观察者，不触发生产
func (co *connectableObservableImpl[T]) Subscribe(observer Observer[T]) Disposable {
	return co.subject.Subscribe(observer)
}

// SubscribeWithCallbacks 使用回调函数订阅
func (co *connectableObservableImpl[T]) SubscribeWithCallbacks(onNext OnNext[T], onError OnError, onComplete OnComplete) Disposable {
	return co.subject.SubscribeWithCallbacks(onNext, onError, onComplete)
}

// Connect 开始发射数据给订阅者
func (co *connectableObservableImpl[T]) Connect() Disposable {
	return co.ConnectWithContext(context.Background())
}

// ConnectWithContext 带上下文的连接
func (co *connectableObservableImpl[T]) ConnectWithContext(ctx context.Context) Disposable {
	co.mu.Lock()
	// 已连接时返回现有连接；连接释放后保持关闭，返回同一个已释放的连接
	if co.connection != nil {
		conn := co.connection
		co.mu.Unlock()
		return conn
	}

	conn := &connection{
		upstream: NewCompositeDisposable(),
		onClose: func() {
			co.connected.Store(false)
			logger().Debug("connectable disconnected")
		},
	}
	co.connection = conn
	co.connected.Store(true)
	co.mu.Unlock()

	logger().Debug("connectable connecting",
		slog.Int("observers", co.subject.ObserverCount()),
	)

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, conn.Dispose)
		conn.upstream.Add(NewBaseDisposable(func() { stop() }))
	}

	// 在锁外订阅源：同步源会在这里发射全部数据
	conn.upstream.Add(co.source.Subscribe(&connectionObserver[T]{
		conn:       conn,
		subject:    co.subject,
		terminated: func() { co.connected.Store(false) },
	}))

	return conn
}

// IsConnected 检查是否已连接。源终止或连接释放后返回false，之后也不会重新连接
func (co *connectableObservableImpl[T]) IsConnected() bool {
	return co.connected.Load()
}

// AutoConnect 当有指定数量的订阅者时自动连接
func (co *connectableObservableImpl[T]) AutoConnect(subscriberCount int) Observable[T] {
	return newObservable(func(s Subscriber[T]) {
		s.Add(co.Subscribe(s))

		if co.subject.ObserverCount() >= subscriberCount {
			co.Connect()
		}
	})
}
