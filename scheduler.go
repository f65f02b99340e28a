// Scheduler implementations for rxstream
// 实现调度器系统，所有基于时间的操作符都通过调度器挂起，而不是阻塞调用线程
package rxstream

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// 调度器接口
// ============================================================================

// Scheduler 调度器接口，控制任务执行时机和方式
type Scheduler interface {
	// Now 调度器的当前时间
	Now() time.Time
	// Schedule 调度一个任务
	Schedule(action func()) Disposable
	// ScheduleWithDelay 延迟调度一个任务
	ScheduleWithDelay(action func(), delay time.Duration) Disposable
	// SchedulePeriodic 在 initialDelay 之后每隔 period 执行一次，period <= 0 时只执行一次
	SchedulePeriodic(action func(), initialDelay, period time.Duration) Disposable
	// ScheduleWithContext 带上下文的调度，上下文取消后任务不再执行
	ScheduleWithContext(ctx context.Context, action func()) Disposable
}

// ============================================================================
// 定时任务
// ============================================================================

// timerTask 基于运行时定时器的延迟任务，到期后交给 dispatch 执行
type timerTask struct {
	disposed atomic.Bool
	timer    *time.Timer
}

func newTimerTask(delay time.Duration, action func(), dispatch func(func())) *timerTask {
	if delay < 0 {
		delay = 0
	}

	t := &timerTask{}
	t.timer = time.AfterFunc(delay, func() {
		if t.disposed.Load() {
			return
		}
		dispatch(func() {
			if !t.disposed.Load() {
				action()
			}
		})
	})
	return t
}

// Dispose 取消尚未开始的执行
func (t *timerTask) Dispose() {
	if t.disposed.CompareAndSwap(false, true) {
		t.timer.Stop()
	}
}

// IsDisposed 检查是否已释放
func (t *timerTask) IsDisposed() bool {
	return t.disposed.Load()
}

// runInline 在定时器goroutine中直接执行，panic被记录而不会终止进程
func runInline(action func()) {
	runRecovered("timer", action)
}

// runRecovered 执行任务并记录其中的panic
func runRecovered(scheduler string, action func()) {
	defer func() {
		if r := recover(); r != nil {
			logRecoveredPanic(scheduler, r)
		}
	}()

	action()
}

// ============================================================================
// 周期任务
// ============================================================================

// recurringTask 周期任务。每次执行结束后才调度下一次，
// 下一次的到期时间按 start + n*period 计算，不累积漂移，也不会重叠执行
type recurringTask struct {
	scheduler Scheduler
	action    func()
	period    time.Duration
	start     time.Time

	mu       sync.Mutex
	fired    int64
	current  Disposable
	disposed bool
}

// ScheduleRecurring 在任意调度器上构建周期调度
func ScheduleRecurring(scheduler Scheduler, action func(), initialDelay, period time.Duration) Disposable {
	if initialDelay < 0 {
		initialDelay = 0
	}
	if period <= 0 {
		return scheduler.ScheduleWithDelay(action, initialDelay)
	}

	t := &recurringTask{
		scheduler: scheduler,
		action:    action,
		period:    period,
		start:     scheduler.Now().Add(initialDelay),
	}
	t.scheduleNext(initialDelay)
	return t
}

func (t *recurringTask) run() {
	if t.IsDisposed() {
		return
	}

	t.action()

	t.mu.Lock()
	t.fired++
	due := t.start.Add(time.Duration(t.fired) * t.period)
	t.mu.Unlock()

	delay := due.Sub(t.scheduler.Now())
	if delay < 0 {
		delay = 0
	}
	t.scheduleNext(delay)
}

func (t *recurringTask) scheduleNext(delay time.Duration) {
	if t.IsDisposed() {
		return
	}

	// 不持锁调度：某些调度器可能同步执行任务
	next := t.scheduler.ScheduleWithDelay(t.run, delay)

	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		next.Dispose()
		return
	}
	t.current = next
	t.mu.Unlock()
}

// Dispose 阻止之后的执行，不中断正在进行的执行
func (t *recurringTask) Dispose() {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return
	}
	t.disposed = true
	current := t.current
	t.current = nil
	t.mu.Unlock()

	if current != nil {
		current.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (t *recurringTask) IsDisposed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disposed
}

// scheduleWithContext 包装任务，使上下文取消后跳过执行
func scheduleWithContext(scheduler Scheduler, ctx context.Context, action func()) Disposable {
	return scheduler.Schedule(func() {
		if ctx.Err() != nil {
			return
		}
		action()
	})
}

// ============================================================================
// 立即调度器 - Immediate Scheduler
// ============================================================================

// immediateScheduler 立即在当前goroutine中执行任务，延迟任务在定时器goroutine中执行
type immediateScheduler struct{}

// NewImmediateScheduler 创建立即调度器
func NewImmediateScheduler() Scheduler {
	return immediateScheduler{}
}

func (immediateScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 立即执行任务
func (immediateScheduler) Schedule(action func()) Disposable {
	action()
	return NewBaseDisposable(nil)
}

// ScheduleWithDelay 延迟执行任务
func (immediateScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	return newTimerTask(delay, action, runInline)
}

// SchedulePeriodic 周期执行任务
func (s immediateScheduler) SchedulePeriodic(action func(), initialDelay, period time.Duration) Disposable {
	return ScheduleRecurring(s, action, initialDelay, period)
}

// ScheduleWithContext 带上下文执行任务
func (s immediateScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// ============================================================================
// 新线程调度器 - New Thread Scheduler
// ============================================================================

// newThreadScheduler 为每个任务创建新的goroutine
type newThreadScheduler struct{}

// NewNewThreadScheduler 创建新线程调度器
func NewNewThreadScheduler() Scheduler {
	return newThreadScheduler{}
}

func (newThreadScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 在新goroutine中执行任务
func (newThreadScheduler) Schedule(action func()) Disposable {
	var disposed atomic.Bool

	go runRecovered("new_thread", func() {
		if !disposed.Load() {
			action()
		}
	})

	return NewBaseDisposable(func() {
		disposed.Store(true)
	})
}

// ScheduleWithDelay 延迟在新goroutine中执行任务
func (newThreadScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	// time.AfterFunc 本身就在独立的goroutine中回调
	return newTimerTask(delay, action, runInline)
}

// SchedulePeriodic 周期执行任务
func (s newThreadScheduler) SchedulePeriodic(action func(), initialDelay, period time.Duration) Disposable {
	return ScheduleRecurring(s, action, initialDelay, period)
}

// ScheduleWithContext 带上下文在新goroutine中执行任务
func (s newThreadScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// ============================================================================
// 线程池调度器 - Thread Pool Scheduler
// ============================================================================

// ThreadPoolScheduler 使用固定大小的goroutine池执行任务
type ThreadPoolScheduler struct {
	workers   int
	taskQueue chan func()
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    atomic.Bool
}

// NewThreadPoolScheduler 创建线程池调度器
func NewThreadPoolScheduler(workers int) *ThreadPoolScheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())

	scheduler := &ThreadPoolScheduler{
		workers:   workers,
		taskQueue: make(chan func(), workers*2), // 缓冲区大小为worker数量的2倍
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < workers; i++ {
		scheduler.wg.Add(1)
		go scheduler.worker()
	}

	return scheduler
}

func (s *ThreadPoolScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 在线程池中执行任务
func (s *ThreadPoolScheduler) Schedule(action func()) Disposable {
	var disposed atomic.Bool
	s.submit(func() {
		if !disposed.Load() {
			action()
		}
	})

	return NewBaseDisposable(func() {
		disposed.Store(true)
	})
}

// ScheduleWithDelay 到期后把任务提交到线程池
func (s *ThreadPoolScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	return newTimerTask(delay, action, s.submit)
}

// SchedulePeriodic 周期执行任务，同一个周期任务不会在多个worker上重叠执行
func (s *ThreadPoolScheduler) SchedulePeriodic(action func(), initialDelay, period time.Duration) Disposable {
	return ScheduleRecurring(s, action, initialDelay, period)
}

// ScheduleWithContext 带上下文在线程池中执行任务
func (s *ThreadPoolScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// Workers 返回worker数量
func (s *ThreadPoolScheduler) Workers() int {
	return s.workers
}

func (s *ThreadPoolScheduler) submit(task func()) {
	if s.closed.Load() {
		return
	}

	select {
	case s.taskQueue <- task:
		return
	default:
	}

	// 队列已满：由溢出goroutine等待入队，提交方（可能就是worker自己）不阻塞
	go func() {
		select {
		case s.taskQueue <- task:
		case <-s.ctx.Done():
		}
	}()
}

// worker 工作goroutine
func (s *ThreadPoolScheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case task := <-s.taskQueue:
			s.execute(task)
		}
	}
}

func (s *ThreadPoolScheduler) execute(task func()) {
	runRecovered("thread_pool", task)
}

// Close 停止所有worker并等待它们退出，队列中未执行的任务被丢弃
func (s *ThreadPoolScheduler) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.cancel()
		s.wg.Wait()
	}
}

// ============================================================================
// 测试调度器 - Test Scheduler
// ============================================================================

// TestScheduler 用于测试的虚拟时间调度器，时间只在 AdvanceTimeBy/AdvanceTimeTo 时前进
type TestScheduler struct {
	mu       sync.Mutex
	clock    time.Duration
	queue    []*scheduledAction
	nextID   uint64
	disposed bool
}

// scheduledAction 调度的动作
type scheduledAction struct {
	id     uint64
	due    time.Duration
	action func()
}

// NewTestScheduler 创建测试调度器，虚拟时钟从 Unix 纪元开始
func NewTestScheduler() *TestScheduler {
	return &TestScheduler{}
}

// Now 当前虚拟时间
func (s *TestScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Unix(0, 0).UTC().Add(s.clock)
}

// Clock 自纪元起经过的虚拟时间
func (s *TestScheduler) Clock() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// Schedule 在当前虚拟时间调度任务，下次推进时间时执行
func (s *TestScheduler) Schedule(action func()) Disposable {
	return s.ScheduleWithDelay(action, 0)
}

// ScheduleWithDelay 延迟调度任务
func (s *TestScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	due := s.clock + delay
	s.mu.Unlock()

	return s.ScheduleAt(due, action)
}

// SchedulePeriodic 周期调度任务
func (s *TestScheduler) SchedulePeriodic(action func(), initialDelay, period time.Duration) Disposable {
	return ScheduleRecurring(s, action, initialDelay, period)
}

// ScheduleWithContext 带上下文调度任务
func (s *TestScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// ScheduleAt 在指定虚拟时间调度任务，同一时刻的任务按调度顺序执行
func (s *TestScheduler) ScheduleAt(due time.Duration, action func()) Disposable {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return NewBaseDisposable(nil)
	}

	s.nextID++
	entry := &scheduledAction{id: s.nextID, due: due, action: action}

	i := sort.Search(len(s.queue), func(i int) bool {
		return s.queue[i].due > due
	})
	s.queue = append(s.queue, nil)
	copy(s.queue[i+1:], s.queue[i:])
	s.queue[i] = entry

	return NewBaseDisposable(func() {
		s.removeAction(entry.id)
	})
}

// AdvanceTimeBy 推进时间
func (s *TestScheduler) AdvanceTimeBy(duration time.Duration) {
	s.mu.Lock()
	target := s.clock + duration
	s.mu.Unlock()

	s.AdvanceTimeTo(target)
}

// AdvanceTimeTo 推进时间到指定时刻，依次执行所有到期的任务。
// 任务执行期间时钟停在该任务的到期时间
func (s *TestScheduler) AdvanceTimeTo(target time.Duration) {
	for {
		next := s.popDue(target)
		if next == nil {
			break
		}
		// 不持锁执行，允许action调度新任务
		next.action()
	}

	s.mu.Lock()
	if target > s.clock {
		s.clock = target
	}
	s.mu.Unlock()
}

// popDue 取出下一个不晚于 target 的任务，并把时钟拨到它的到期时间
func (s *TestScheduler) popDue(target time.Duration) *scheduledAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed || len(s.queue) == 0 || s.queue[0].due > target {
		return nil
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	if next.due > s.clock {
		s.clock = next.due
	}
	return next
}

// Pending 尚未执行的任务数量
func (s *TestScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// removeAction 移除动作
func (s *TestScheduler) removeAction(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, action := range s.queue {
		if action.id == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// Dispose 释放测试调度器
func (s *TestScheduler) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disposed = true
	s.queue = nil
}
