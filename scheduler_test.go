package rxstream

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TestScheduler 测试
// ============================================================================

func TestTestSchedulerOrdering(t *testing.T) {
	scheduler := NewTestScheduler()
	var order []string

	scheduler.ScheduleWithDelay(func() { order = append(order, "b1") }, 2*time.Second)
	scheduler.ScheduleWithDelay(func() { order = append(order, "a") }, time.Second)
	scheduler.ScheduleWithDelay(func() { order = append(order, "b2") }, 2*time.Second)
	scheduler.Schedule(func() { order = append(order, "now") })

	scheduler.AdvanceTimeBy(2 * time.Second)

	assert.Equal(t, []string{"now", "a", "b1", "b2"}, order)
	assert.Equal(t, 2*time.Second, scheduler.Clock())
}

func TestTestSchedulerClockDuringAction(t *testing.T) {
	scheduler := NewTestScheduler()
	var seen time.Time

	scheduler.ScheduleWithDelay(func() { seen = scheduler.Now() }, 3*time.Second)
	scheduler.AdvanceTimeBy(10 * time.Second)

	assert.Equal(t, time.Unix(3, 0).UTC(), seen)
	assert.Equal(t, time.Unix(10, 0).UTC(), scheduler.Now())
}

func TestTestSchedulerCancel(t *testing.T) {
	scheduler := NewTestScheduler()
	ran := false

	d := scheduler.ScheduleWithDelay(func() { ran = true }, time.Second)
	require.Equal(t, 1, scheduler.Pending())

	d.Dispose()
	assert.Zero(t, scheduler.Pending())

	scheduler.AdvanceTimeBy(time.Second)
	assert.False(t, ran)
}

func TestTestSchedulerActionSchedulesMore(t *testing.T) {
	scheduler := NewTestScheduler()
	var ticks []time.Duration

	var step func()
	step = func() {
		ticks = append(ticks, scheduler.Clock())
		if len(ticks) < 3 {
			scheduler.ScheduleWithDelay(step, time.Second)
		}
	}
	scheduler.Schedule(step)
	scheduler.AdvanceTimeBy(time.Minute)

	assert.Equal(t, []time.Duration{0, time.Second, 2 * time.Second}, ticks)
}

func TestTestSchedulerDispose(t *testing.T) {
	scheduler := NewTestScheduler()
	ran := false
	scheduler.ScheduleWithDelay(func() { ran = true }, time.Second)

	scheduler.Dispose()
	scheduler.AdvanceTimeBy(time.Second)
	scheduler.Schedule(func() { ran = true })
	scheduler.AdvanceTimeBy(time.Second)

	assert.False(t, ran)
	assert.Zero(t, scheduler.Pending())
}

func TestScheduleWithContextSkipsCancelled(t *testing.T) {
	scheduler := NewTestScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	ran := false

	scheduler.ScheduleWithContext(ctx, func() { ran = true })
	cancel()
	scheduler.AdvanceTimeBy(0)

	assert.False(t, ran)
}

// ============================================================================
// 周期调度测试
// ============================================================================

func TestSchedulePeriodic(t *testing.T) {
	scheduler := NewTestScheduler()
	var fired []time.Duration

	d := scheduler.SchedulePeriodic(func() {
		fired = append(fired, scheduler.Clock())
	}, 2*time.Second, time.Second)

	scheduler.AdvanceTimeBy(4 * time.Second)
	assert.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second, 4 * time.Second}, fired)

	d.Dispose()
	scheduler.AdvanceTimeBy(10 * time.Second)
	assert.Len(t, fired, 3)
	assert.Zero(t, scheduler.Pending())
}

func TestSchedulePeriodicWithoutPeriodRunsOnce(t *testing.T) {
	scheduler := NewTestScheduler()
	runs := 0

	scheduler.SchedulePeriodic(func() { runs++ }, time.Second, 0)
	scheduler.AdvanceTimeBy(time.Minute)

	assert.Equal(t, 1, runs)
}

func TestSchedulePeriodicDisposeFromAction(t *testing.T) {
	scheduler := NewTestScheduler()
	runs := 0

	var d Disposable
	d = scheduler.SchedulePeriodic(func() {
		runs++
		if runs == 2 {
			d.Dispose()
		}
	}, time.Second, time.Second)

	scheduler.AdvanceTimeBy(time.Minute)
	assert.Equal(t, 2, runs)
	assert.Zero(t, scheduler.Pending())
}

// ============================================================================
// 真实时间调度器测试
// ============================================================================

func TestNewThreadScheduler(t *testing.T) {
	scheduler := NewNewThreadScheduler()

	t.Run("Schedule", func(t *testing.T) {
		done := make(chan struct{})
		scheduler.Schedule(func() { close(done) })

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("action did not run")
		}
	})

	t.Run("取消延迟任务", func(t *testing.T) {
		var ran atomic.Bool
		d := scheduler.ScheduleWithDelay(func() { ran.Store(true) }, 50*time.Millisecond)
		d.Dispose()

		time.Sleep(100 * time.Millisecond)
		assert.False(t, ran.Load())
		assert.True(t, d.IsDisposed())
	})
}

func TestImmediateSchedulerRunsInline(t *testing.T) {
	ran := false
	NewImmediateScheduler().Schedule(func() { ran = true })
	assert.True(t, ran)
}

func TestThreadPoolScheduler(t *testing.T) {
	pool := NewThreadPoolScheduler(4)
	t.Cleanup(pool.Close)
	assert.Equal(t, 4, pool.Workers())

	t.Run("执行全部任务", func(t *testing.T) {
		var wg sync.WaitGroup
		var count atomic.Int32
		for range 100 {
			wg.Add(1)
			pool.Schedule(func() {
				defer wg.Done()
				count.Add(1)
			})
		}
		wg.Wait()
		assert.Equal(t, int32(100), count.Load())
	})

	t.Run("任务panic不影响worker", func(t *testing.T) {
		var buf syncBuffer
		SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
		t.Cleanup(func() { SetLogger(nil) })

		for range pool.Workers() {
			pool.Schedule(func() { panic("worker task failed") })
		}

		done := make(chan struct{})
		pool.Schedule(func() { close(done) })
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("pool stopped after panic")
		}

		require.Eventually(t, func() bool {
			return bytes.Contains(buf.Bytes(), []byte("worker task failed"))
		}, time.Second, time.Millisecond)
	})

	t.Run("Interval按顺序发射", func(t *testing.T) {
		rec := newRecorder[int64]()
		Must(Take(Must(Interval(5*time.Millisecond, pool)), 5)).Subscribe(rec)
		rec.Wait(t, 2*time.Second)

		assert.Equal(t, []int64{0, 1, 2, 3, 4}, rec.Values())
	})
}

func TestThreadPoolSchedulerSubmitFromWorker(t *testing.T) {
	pool := NewThreadPoolScheduler(1)
	t.Cleanup(pool.Close)

	// 超过队列容量的提交也不能阻塞唯一的worker
	const tasks = 10
	var wg sync.WaitGroup
	wg.Add(tasks)

	submitted := make(chan struct{})
	pool.Schedule(func() {
		for range tasks {
			pool.Schedule(wg.Done)
		}
		close(submitted)
	})

	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("worker blocked submitting to its own queue")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queued tasks did not run")
	}
}

func TestRealTimeSchedulersRecoverPanics(t *testing.T) {
	var buf syncBuffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetLogger(nil) })

	scheduler := NewNewThreadScheduler()

	t.Run("Schedule", func(t *testing.T) {
		scheduler.Schedule(func() { panic("new thread task failed") })
		require.Eventually(t, func() bool {
			return bytes.Contains(buf.Bytes(), []byte("new thread task failed"))
		}, time.Second, time.Millisecond)
	})

	t.Run("ScheduleWithDelay", func(t *testing.T) {
		scheduler.ScheduleWithDelay(func() { panic("delayed task failed") }, time.Millisecond)
		require.Eventually(t, func() bool {
			return bytes.Contains(buf.Bytes(), []byte("delayed task failed"))
		}, time.Second, time.Millisecond)
	})
}

func TestThreadPoolSchedulerClose(t *testing.T) {
	pool := NewThreadPoolScheduler(1)
	pool.Close()
	pool.Close()

	var ran atomic.Bool
	pool.Schedule(func() { ran.Store(true) })
	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())
}

// syncBuffer 并发安全的日志缓冲区
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}
