package rxstream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource 记录被订阅次数的冷数据源
func countingSource(t *testing.T, count int) (Observable[int], *atomic.Int32) {
	t.Helper()
	var subscriptions atomic.Int32
	source := Must(Range(0, count))
	return Must(Create(func(s Subscriber[int]) {
		subscriptions.Add(1)
		s.Add(source.Subscribe(s))
	})), &subscriptions
}

func TestPublishDoesNotSubscribeUntilConnect(t *testing.T) {
	source, subscriptions := countingSource(t, 3)
	hot := Must(Publish(source))

	rec := newRecorder[int]()
	hot.Subscribe(rec)
	assert.Zero(t, subscriptions.Load())
	assert.False(t, hot.IsConnected())

	conn := hot.Connect()
	assert.Equal(t, int32(1), subscriptions.Load())
	assert.Equal(t, []int{0, 1, 2}, rec.Values())
	assert.Equal(t, 1, rec.Completions())
	assert.False(t, hot.IsConnected(), "completed upstream no longer counts as connected")

	again := hot.Connect()
	assert.Same(t, conn, again)
	assert.Equal(t, int32(1), subscriptions.Load())
}

func TestPublishHotSemantics(t *testing.T) {
	scheduler := NewTestScheduler()
	hot := Must(Publish(Must(Interval(time.Second, scheduler))))

	first := newRecorder[int64]()
	hot.Subscribe(first)

	// 连接之前时间流逝不产生任何数据
	scheduler.AdvanceTimeBy(3 * time.Second)
	assert.Empty(t, first.Values())

	conn := hot.Connect()
	assert.True(t, hot.IsConnected())
	scheduler.AdvanceTimeBy(3 * time.Second)
	assert.Equal(t, []int64{0, 1, 2}, first.Values())

	second := newRecorder[int64]()
	hot.Subscribe(second)
	scheduler.AdvanceTimeBy(2 * time.Second)

	assert.Equal(t, []int64{0, 1, 2, 3, 4}, first.Values())
	assert.Equal(t, []int64{3, 4}, second.Values())

	conn.Dispose()
	assert.False(t, hot.IsConnected())
	scheduler.AdvanceTimeBy(5 * time.Second)

	assert.Len(t, first.Values(), 5)
	assert.Len(t, second.Values(), 2)
	assert.Zero(t, first.Completions())
	assert.Zero(t, scheduler.Pending())
}

func TestPublishStaysClosedAfterDispose(t *testing.T) {
	scheduler := NewTestScheduler()
	hot := Must(Publish(Must(Interval(time.Second, scheduler))))

	rec := newRecorder[int64]()
	hot.Subscribe(rec)

	conn := hot.Connect()
	scheduler.AdvanceTimeBy(time.Second)
	conn.Dispose()

	again := hot.Connect()
	assert.Same(t, conn, again)
	assert.True(t, again.IsDisposed())
	assert.False(t, hot.IsConnected())

	scheduler.AdvanceTimeBy(5 * time.Second)
	assert.Equal(t, []int64{0}, rec.Values())
}

func TestPublishObserverDisposeLeavesOthers(t *testing.T) {
	scheduler := NewTestScheduler()
	hot := Must(Publish(Must(Interval(time.Second, scheduler))))
	impl := hot.(*connectableObservableImpl[int64])

	first, second := newRecorder[int64](), newRecorder[int64]()
	sub := hot.Subscribe(first)
	hot.Subscribe(second)
	require.Equal(t, 2, impl.subject.ObserverCount())

	hot.Connect()
	scheduler.AdvanceTimeBy(time.Second)

	sub.Dispose()
	assert.Equal(t, 1, impl.subject.ObserverCount())

	scheduler.AdvanceTimeBy(2 * time.Second)
	assert.Equal(t, []int64{0}, first.Values())
	assert.Equal(t, []int64{0, 1, 2}, second.Values())
}

func TestPublishLateSubscriberGetsTermination(t *testing.T) {
	hot := Must(Publish(Must(Range(0, 3))))

	early := newRecorder[int]()
	hot.Subscribe(early)
	hot.Connect()

	late := newRecorder[int]()
	hot.Subscribe(late)

	assert.Equal(t, []int{0, 1, 2}, early.Values())
	assert.Empty(t, late.Values())
	assert.Equal(t, 1, late.Completions())
}

func TestConnectWithContext(t *testing.T) {
	scheduler := NewTestScheduler()
	hot := Must(Publish(Must(Interval(time.Second, scheduler))))

	rec := newRecorder[int64]()
	hot.Subscribe(rec)

	ctx, cancel := context.WithCancel(context.Background())
	conn := hot.ConnectWithContext(ctx)
	scheduler.AdvanceTimeBy(2 * time.Second)

	cancel()
	require.Eventually(t, conn.IsDisposed, time.Second, time.Millisecond)

	scheduler.AdvanceTimeBy(3 * time.Second)
	assert.Equal(t, []int64{0, 1}, rec.Values())
}

func TestAutoConnect(t *testing.T) {
	source, subscriptions := countingSource(t, 3)
	auto := Must(Publish(source)).AutoConnect(2)

	first := newRecorder[int]()
	auto.Subscribe(first)
	assert.Zero(t, subscriptions.Load())

	second := newRecorder[int]()
	auto.Subscribe(second)
	assert.Equal(t, int32(1), subscriptions.Load())

	assert.Equal(t, []int{0, 1, 2}, first.Values())
	assert.Equal(t, []int{0, 1, 2}, second.Values())
	assert.Equal(t, 1, second.Completions())
}

func TestPublishRejectsNilSource(t *testing.T) {
	_, err := Publish[int](nil)
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestPublishUpstreamErrorDisconnects(t *testing.T) {
	scheduler := NewTestScheduler()
	boom := errors.New("boom")
	source := Must(Create(func(s Subscriber[int]) {
		s.Add(scheduler.ScheduleWithDelay(func() { s.OnError(boom) }, time.Second))
	}))
	hot := Must(Publish(source))

	rec := newRecorder[int]()
	hot.Subscribe(rec)
	hot.Connect()
	assert.True(t, hot.IsConnected())

	scheduler.AdvanceTimeBy(time.Second)
	assert.False(t, hot.IsConnected())
	require.Len(t, rec.Errors(), 1)
	assert.ErrorIs(t, rec.Errors()[0], boom)
}
