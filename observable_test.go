package rxstream

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// 订阅契约测试
// ============================================================================

func TestCreateRejectsNilProducer(t *testing.T) {
	_, err := Create[int](nil)
	assert.ErrorIs(t, err, ErrNilProducer)
}

func TestSubscriberTerminalContract(t *testing.T) {
	t.Run("完成后的事件被丢弃", func(t *testing.T) {
		source := Must(Create(func(s Subscriber[int]) {
			s.OnNext(1)
			s.OnComplete()
			s.OnNext(2)
			s.OnError(errors.New("late"))
			s.OnComplete()
		}))

		rec := newRecorder[int]()
		source.Subscribe(rec)

		assert.Equal(t, []int{1}, rec.Values())
		assert.Empty(t, rec.Errors())
		assert.Equal(t, 1, rec.Completions())
	})

	t.Run("错误后的事件被丢弃", func(t *testing.T) {
		boom := errors.New("boom")
		source := Must(Create(func(s Subscriber[int]) {
			s.OnError(boom)
			s.OnNext(1)
			s.OnComplete()
		}))

		rec := newRecorder[int]()
		source.Subscribe(rec)

		assert.Empty(t, rec.Values())
		require.Len(t, rec.Errors(), 1)
		assert.ErrorIs(t, rec.Errors()[0], boom)
		assert.Zero(t, rec.Completions())
	})

	t.Run("终止后释放上游资源", func(t *testing.T) {
		released := NewBaseDisposable(nil)
		source := Must(Create(func(s Subscriber[int]) {
			s.Add(released)
			s.OnComplete()
		}))

		source.Subscribe(newRecorder[int]())
		assert.True(t, released.IsDisposed())
	})

	t.Run("终止后取消上下文", func(t *testing.T) {
		var sub Subscriber[int]
		source := Must(Create(func(s Subscriber[int]) {
			sub = s
			s.OnComplete()
		}))

		source.Subscribe(nil)
		require.NotNil(t, sub)
		assert.Error(t, sub.Context().Err())
		assert.True(t, sub.IsDisposed())
	})
}

func TestProducerPanicBecomesError(t *testing.T) {
	source := Must(Create(func(s Subscriber[int]) {
		s.OnNext(1)
		panic("kaboom")
	}))

	rec := newRecorder[int]()
	source.Subscribe(rec)

	assert.Equal(t, []int{1}, rec.Values())
	require.Len(t, rec.Errors(), 1)
	assert.ErrorIs(t, rec.Errors()[0], ErrProducerPanic)
	assert.Contains(t, rec.Errors()[0].Error(), "kaboom")
}

func TestScheduledObserverPanicBecomesError(t *testing.T) {
	t.Run("虚拟时间Interval", func(t *testing.T) {
		scheduler := NewTestScheduler()

		var errs []error
		Must(Interval(time.Second, scheduler)).SubscribeWithCallbacks(
			func(v int64) {
				if v == 1 {
					panic("consumer bug")
				}
			},
			func(err error) { errs = append(errs, err) },
			nil,
		)

		assert.NotPanics(t, func() { scheduler.AdvanceTimeBy(5 * time.Second) })
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], ErrProducerPanic)
		assert.Contains(t, errs[0].Error(), "consumer bug")
		assert.Zero(t, scheduler.Pending())
	})

	t.Run("BufferWithTime刷新", func(t *testing.T) {
		scheduler := NewTestScheduler()

		var errs []error
		Must(BufferWithTime(Never[int](), time.Second, scheduler)).SubscribeWithCallbacks(
			func([]int) { panic("consumer bug") },
			func(err error) { errs = append(errs, err) },
			nil,
		)

		scheduler.AdvanceTimeBy(3 * time.Second)
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], ErrProducerPanic)
	})

	t.Run("新线程调度器上的Interval", func(t *testing.T) {
		errCh := make(chan error, 1)
		sub := Must(Interval(5*time.Millisecond, NewNewThreadScheduler())).SubscribeWithCallbacks(
			func(int64) { panic("consumer bug") },
			func(err error) { errCh <- err },
			nil,
		)
		t.Cleanup(sub.Dispose)

		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, ErrProducerPanic)
		case <-time.After(time.Second):
			t.Fatal("panic was not delivered as an error")
		}
	})
}

// ============================================================================
// 取消订阅测试
// ============================================================================

func TestDisposeBeforeFirstValue(t *testing.T) {
	scheduler := NewTestScheduler()

	t.Run("Interval", func(t *testing.T) {
		rec := newRecorder[int64]()
		sub := Must(Interval(time.Second, scheduler)).Subscribe(rec)
		sub.Dispose()

		scheduler.AdvanceTimeBy(10 * time.Second)
		assert.Zero(t, rec.Events())
		assert.True(t, sub.IsDisposed())
	})

	t.Run("Timer", func(t *testing.T) {
		rec := newRecorder[int64]()
		sub := Must(Timer(time.Second, scheduler)).Subscribe(rec)
		sub.Dispose()

		scheduler.AdvanceTimeBy(10 * time.Second)
		assert.Zero(t, rec.Events())
	})

	t.Run("调度的Range", func(t *testing.T) {
		rec := newRecorder[int]()
		sub := Must(Range(0, 5, WithScheduler(scheduler))).Subscribe(rec)
		sub.Dispose()

		scheduler.AdvanceTimeBy(time.Second)
		assert.Zero(t, rec.Events())
	})

	assert.Zero(t, scheduler.Pending())
}

func TestDisposeIsIdempotent(t *testing.T) {
	scheduler := NewTestScheduler()
	sub := Must(Interval(time.Second, scheduler)).Subscribe(newRecorder[int64]())

	assert.NotPanics(t, func() {
		sub.Dispose()
		sub.Dispose()
	})
	assert.True(t, sub.IsDisposed())
}

func TestDisposeFromInsideCallback(t *testing.T) {
	scheduler := NewTestScheduler()

	var (
		sub    Disposable
		values []int64
	)
	sub = Must(Interval(time.Second, scheduler)).SubscribeWithCallbacks(
		func(v int64) {
			values = append(values, v)
			if len(values) == 3 {
				sub.Dispose()
			}
		},
		func(err error) { t.Errorf("unexpected error: %v", err) },
		func() { t.Error("unexpected completion") },
	)

	scheduler.AdvanceTimeBy(10 * time.Second)

	assert.Equal(t, []int64{0, 1, 2}, values)
	assert.Zero(t, scheduler.Pending())
}

func TestCompletionReleasesTimerUpstream(t *testing.T) {
	scheduler := NewTestScheduler()
	rec := newRecorder[int64]()

	Must(Take(Must(Interval(time.Second, scheduler)), 3)).Subscribe(rec)
	scheduler.AdvanceTimeBy(3 * time.Second)

	assert.Equal(t, []int64{0, 1, 2}, rec.Values())
	assert.Equal(t, 1, rec.Completions())
	assert.Zero(t, scheduler.Pending())
}

func TestNilObserverIsAccepted(t *testing.T) {
	assert.NotPanics(t, func() {
		Must(Range(0, 3)).Subscribe(nil)
	})
}
