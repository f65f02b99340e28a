// Package rxstream provides reactive event-stream primitives for Go
// 基于泛型的响应式事件流引擎，专注于推送式数据流和确定性的订阅生命周期
package rxstream

import (
	"context"
	"sync"
	"sync/atomic"
)

// ============================================================================
// 函数类型定义
// ============================================================================

// OnNext 处理下一个值的函数
type OnNext[T any] func(value T)

// OnError 处理错误的函数
type OnError func(err error)

// OnComplete 处理完成的函数
type OnComplete func()

// ============================================================================
// 生命周期管理
// ============================================================================

// Disposable 可释放资源的接口，Dispose 必须是幂等的
type Disposable interface {
	// Dispose 释放资源
	Dispose()
	// IsDisposed 检查是否已释放
	IsDisposed() bool
}

// baseDisposable 基础可释放资源实现
type baseDisposable struct {
	disposed atomic.Bool
	action   func()
}

// NewBaseDisposable 创建基础可释放资源，action 最多执行一次
func NewBaseDisposable(action func()) Disposable {
	return &baseDisposable{action: action}
}

// Dispose 释放资源
func (d *baseDisposable) Dispose() {
	if d.disposed.CompareAndSwap(false, true) && d.action != nil {
		d.action()
	}
}

// IsDisposed 检查是否已释放
func (d *baseDisposable) IsDisposed() bool {
	return d.disposed.Load()
}

// CompositeDisposable 组合式资源管理器
type CompositeDisposable struct {
	mu        sync.Mutex
	disposed  bool
	resources []Disposable
}

// NewCompositeDisposable 创建组合式资源管理器
func NewCompositeDisposable() *CompositeDisposable {
	return &CompositeDisposable{}
}

// Add 添加可释放资源；如果已经释放，则立即释放新资源
func (cd *CompositeDisposable) Add(disposable Disposable) {
	if disposable == nil {
		return
	}

	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		disposable.Dispose()
		return
	}
	cd.resources = append(cd.resources, disposable)
	cd.mu.Unlock()
}

// Remove 移除资源但不释放它
func (cd *CompositeDisposable) Remove(disposable Disposable) {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	for i, r := range cd.resources {
		if r == disposable {
			cd.resources = append(cd.resources[:i], cd.resources[i+1:]...)
			return
		}
	}
}

// Len 当前持有的资源数量
func (cd *CompositeDisposable) Len() int {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return len(cd.resources)
}

// Dispose 按添加的逆序释放所有资源
func (cd *CompositeDisposable) Dispose() {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return
	}
	cd.disposed = true
	resources := cd.resources
	cd.resources = nil
	cd.mu.Unlock()

	// 在锁外释放，资源的释放动作可能回调到本组合
	for i := len(resources) - 1; i >= 0; i-- {
		resources[i].Dispose()
	}
}

// IsDisposed 检查是否已释放
func (cd *CompositeDisposable) IsDisposed() bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.disposed
}

// ============================================================================
// Observer / Observable 核心接口
// ============================================================================

// Observer 三通道的观察者：OnError 和 OnComplete 是终止事件
type Observer[T any] interface {
	OnNext(value T)
	OnError(err error)
	OnComplete()
}

// Observable 可观察序列的核心接口
type Observable[T any] interface {
	// Subscribe 订阅观察者，返回用于取消订阅的Disposable
	Subscribe(observer Observer[T]) Disposable

	// SubscribeWithCallbacks 使用回调函数订阅
	SubscribeWithCallbacks(onNext OnNext[T], onError OnError, onComplete OnComplete) Disposable
}

// Subscriber 生产者一侧看到的单次订阅
type Subscriber[T any] interface {
	Observer[T]
	Disposable

	// Add 关联一个在订阅终止或释放时一起释放的资源
	Add(disposable Disposable)

	// Context 在订阅释放或终止时取消
	Context() context.Context
}

// callbackObserver 由回调函数组成的观察者
type callbackObserver[T any] struct {
	onNext     OnNext[T]
	onError    OnError
	onComplete OnComplete
}

// NewObserver 从回调函数创建观察者。nil 回调被忽略，
// 但 nil 的 onError 会把错误交给包日志，而不是让进程崩溃
func NewObserver[T any](onNext OnNext[T], onError OnError, onComplete OnComplete) Observer[T] {
	return &callbackObserver[T]{
		onNext:     onNext,
		onError:    onError,
		onComplete: onComplete,
	}
}

func (o *callbackObserver[T]) OnNext(value T) {
	if o.onNext != nil {
		o.onNext(value)
	}
}

func (o *callbackObserver[T]) OnError(err error) {
	if o.onError != nil {
		o.onError(err)
		return
	}
	logUnhandledError(err)
}

func (o *callbackObserver[T]) OnComplete() {
	if o.onComplete != nil {
		o.onComplete()
	}
}

// ============================================================================
// 配置选项
// ============================================================================

// Option 配置选项接口
type Option interface {
	Apply(config *Config)
}

// Config 配置结构
type Config struct {
	// Scheduler 为 nil 时源在订阅者的 goroutine 中同步发射
	Scheduler Scheduler
}

// newConfig 应用所有选项
func newConfig(options []Option) *Config {
	config := &Config{}
	for _, opt := range options {
		if opt != nil {
			opt.Apply(config)
		}
	}
	return config
}

// WithScheduler 创建使用指定调度器的选项
func WithScheduler(scheduler Scheduler) Option {
	return &schedulerOption{scheduler: scheduler}
}

// schedulerOption 调度器选项
type schedulerOption struct {
	scheduler Scheduler
}

// Apply 应用调度器选项
func (o *schedulerOption) Apply(config *Config) {
	config.Scheduler = o.scheduler
}

// Must 在构造出错时panic，用于参数已知合法的管道
func Must[V any](value V, err error) V {
	if err != nil {
		panic(err)
	}
	return value
}
