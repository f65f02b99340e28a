// Side effect operators for rxstream
// 副作用操作符：在不改变数据流的前提下观察事件
package rxstream

import "log/slog"

// tapState 先执行回调，再把事件原样转发给下游
type tapState[T any] struct {
	downstream Subscriber[T]
	onNext     OnNext[T]
	onError    OnError
	onComplete OnComplete
}

func (t *tapState[T]) IsDisposed() bool {
	return t.downstream.IsDisposed()
}

func (t *tapState[T]) OnNext(value T) {
	if t.onNext != nil {
		t.onNext(value)
	}
	t.downstream.OnNext(value)
}

func (t *tapState[T]) OnError(err error) {
	if t.onError != nil {
		t.onError(err)
	}
	t.downstream.OnError(err)
}

func (t *tapState[T]) OnComplete() {
	if t.onComplete != nil {
		t.onComplete()
	}
	t.downstream.OnComplete()
}

// Tap 通用的副作用操作符，nil 回调被跳过
func Tap[T any](source Observable[T], onNext OnNext[T], onError OnError, onComplete OnComplete) (Observable[T], error) {
	if source == nil {
		return nil, ErrNilSource
	}

	return newObservable(func(s Subscriber[T]) {
		s.Add(source.Subscribe(&tapState[T]{
			downstream: s,
			onNext:     onNext,
			onError:    onError,
			onComplete: onComplete,
		}))
	}), nil
}

// DoOnTerminate 在完成或错误时执行 action，然后才通知下游
func DoOnTerminate[T any](source Observable[T], action func()) (Observable[T], error) {
	if action == nil {
		return nil, ErrNilTransformer
	}
	return Tap(source, nil, func(error) { action() }, action)
}

// Log 以 Debug 级别把每个事件写入包日志
func Log[T any](source Observable[T], name string) (Observable[T], error) {
	return Tap(source,
		func(value T) {
			logger().Debug("observable next",
				slog.String("stream", name),
				slog.Any("value", value),
			)
		},
		func(err error) {
			logger().Debug("observable error",
				slog.String("stream", name),
				slog.String("error", err.Error()),
			)
		},
		func() {
			logger().Debug("observable complete", slog.String("stream", name))
		},
	)
}
