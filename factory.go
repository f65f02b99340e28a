// Factory functions for rxstream
// 工厂函数：范围、序列、通道、定时器等冷数据源
package rxstream

import (
	"fmt"
	"iter"
	"slices"
	"time"
)

// ============================================================================
// 基础工厂函数
// ============================================================================

// Just 从给定的值创建Observable
func Just[T any](values ...T) Observable[T] {
	return Must(FromSlice(values))
}

// Empty 创建一个空的Observable，立即完成
func Empty[T any]() Observable[T] {
	return newObservable(func(s Subscriber[T]) {
		s.OnComplete()
	})
}

// Never 创建一个永不发射任何值的Observable
func Never[T any]() Observable[T] {
	return newObservable(func(Subscriber[T]) {})
}

// Error 创建一个立即发射错误的Observable
func Error[T any](err error) Observable[T] {
	return newObservable(func(s Subscriber[T]) {
		s.OnError(err)
	})
}

// Range 创建发射 [start, start+count) 范围整数的Observable。
// 默认在订阅者的goroutine中同步发射，WithScheduler 可以把发射循环移到调度器上
func Range(start, count int, options ...Option) (Observable[int], error) {
	if count < 0 {
		return nil, fmt.Errorf("range count %d: %w", count, ErrNegativeCount)
	}

	config := newConfig(options)
	return newObservable(func(s Subscriber[int]) {
		emitOn(config.Scheduler, s, func() {
			for i := 0; i < count; i++ {
				if s.IsDisposed() {
					return
				}
				s.OnNext(start + i)
			}
			s.OnComplete()
		})
	}), nil
}

// ============================================================================
// 从数据源创建
// ============================================================================

// FromSequence 从可能惰性产生的有限序列创建冷Observable，每次订阅重新迭代。
// 序列产出的非空错误作为 OnError 投递一次，之后停止迭代
func FromSequence[T any](seq iter.Seq2[T, error], options ...Option) (Observable[T], error) {
	if seq == nil {
		return nil, ErrNilSequence
	}

	config := newConfig(options)
	return newObservable(func(s Subscriber[T]) {
		emitOn(config.Scheduler, s, func() {
			for value, err := range seq {
				if s.IsDisposed() {
					return
				}
				if err != nil {
					s.OnError(err)
					return
				}
				s.OnNext(value)
			}
			s.OnComplete()
		})
	}), nil
}

// FromSeq 从不会失败的序列创建Observable
func FromSeq[T any](seq iter.Seq[T], options ...Option) (Observable[T], error) {
	if seq == nil {
		return nil, ErrNilSequence
	}

	return FromSequence(func(yield func(T, error) bool) {
		for value := range seq {
			if !yield(value, nil) {
				return
			}
		}
	}, options...)
}

// FromSlice 从切片创建Observable
func FromSlice[T any](items []T, options ...Option) (Observable[T], error) {
	return FromSeq(slices.Values(items), options...)
}

// FromChannel 从Go channel创建Observable，channel关闭时完成。
// 多个订阅者共享同一个channel，各自读到的值互不重复
func FromChannel[T any](ch <-chan T) (Observable[T], error) {
	if ch == nil {
		return nil, ErrNilChannel
	}

	return newObservable(func(s Subscriber[T]) {
		ctx := s.Context()

		go guard(s, func() {
			for {
				select {
				case <-ctx.Done():
					return
				case value, ok := <-ch:
					if !ok {
						s.OnComplete()
						return
					}
					s.OnNext(value)
				}
			}
		})()
	}), nil
}

// emitOn 在调度器上运行发射循环；scheduler 为 nil 时同步运行
func emitOn[T any](scheduler Scheduler, s Subscriber[T], emit func()) {
	if scheduler == nil {
		emit()
		return
	}

	s.Add(scheduler.Schedule(guard(s, emit)))
}

// ============================================================================
// 时间相关工厂函数
// ============================================================================

// tickState 单个订阅私有的计数器，保证每个订阅都从0开始
type tickState struct {
	subscriber Subscriber[int64]
	counter    int64
}

func (t *tickState) tick() {
	t.subscriber.OnNext(t.counter)
	t.counter++
}

// Interval 创建每隔 period 发射递增整数的Observable，第一次发射在一个周期之后
func Interval(period time.Duration, scheduler Scheduler) (Observable[int64], error) {
	if period <= 0 {
		return nil, fmt.Errorf("interval period %v: %w", period, ErrInvalidPeriod)
	}
	return PeriodicTimer(period, period, scheduler)
}

// Timer 创建在指定延迟后发射0然后完成的Observable
func Timer(delay time.Duration, scheduler Scheduler) (Observable[int64], error) {
	if err := validateTiming(delay, scheduler); err != nil {
		return nil, err
	}

	return newObservable(func(s Subscriber[int64]) {
		s.Add(scheduler.ScheduleWithDelay(guard(s, func() {
			s.OnNext(0)
			s.OnComplete()
		}), delay))
	}), nil
}

// PeriodicTimer 在 delay 之后发射0，之后每隔 period 发射下一个整数
func PeriodicTimer(delay, period time.Duration, scheduler Scheduler) (Observable[int64], error) {
	if err := validateTiming(delay, scheduler); err != nil {
		return nil, err
	}
	if period <= 0 {
		return nil, fmt.Errorf("period %v: %w", period, ErrInvalidPeriod)
	}

	return newObservable(func(s Subscriber[int64]) {
		state := &tickState{subscriber: s}
		s.Add(scheduler.SchedulePeriodic(guard(s, state.tick), delay, period))
	}), nil
}

func validateTiming(delay time.Duration, scheduler Scheduler) error {
	if scheduler == nil {
		return ErrNilScheduler
	}
	if delay < 0 {
		return fmt.Errorf("delay %v: %w", delay, ErrInvalidDelay)
	}
	return nil
}
