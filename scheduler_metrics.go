// Scheduler metrics for rxstream
// 带指标的调度器包装：通过 OpenTelemetry 记录任务的调度、完成、失败和耗时
package rxstream

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/xinjiayu/rxstream"

// SchedulerStats 调度器任务计数快照
type SchedulerStats struct {
	TasksScheduled int64
	TasksCompleted int64
	TasksFailed    int64
}

// MonitoredScheduler 带OpenTelemetry指标的调度器包装器。
// 周期任务的每一次执行都单独计数
type MonitoredScheduler struct {
	scheduler Scheduler
	attrs     metric.MeasurementOption

	scheduled metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	latency   metric.Float64Histogram

	stats struct {
		scheduled atomic.Int64
		completed atomic.Int64
		failed    atomic.Int64
	}
}

// NewMonitoredScheduler 创建带监控的调度器。meter 为 nil 时使用全局 MeterProvider
func NewMonitoredScheduler(scheduler Scheduler, meter metric.Meter, name string) (*MonitoredScheduler, error) {
	if scheduler == nil {
		return nil, ErrNilScheduler
	}
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	scheduled, err := meter.Int64Counter("rxstream.scheduler.tasks.scheduled",
		metric.WithDescription("Number of actions handed to the scheduler"),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduled counter: %w", err)
	}

	completed, err := meter.Int64Counter("rxstream.scheduler.tasks.completed",
		metric.WithDescription("Number of actions that ran to completion"),
	)
	if err != nil {
		return nil, fmt.Errorf("create completed counter: %w", err)
	}

	failed, err := meter.Int64Counter("rxstream.scheduler.tasks.failed",
		metric.WithDescription("Number of actions that panicked"),
	)
	if err != nil {
		return nil, fmt.Errorf("create failed counter: %w", err)
	}

	latency, err := meter.Float64Histogram("rxstream.scheduler.task.latency_ms",
		metric.WithDescription("Action execution time in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency histogram: %w", err)
	}

	return &MonitoredScheduler{
		scheduler: scheduler,
		attrs:     metric.WithAttributes(attribute.String("scheduler", name)),
		scheduled: scheduled,
		completed: completed,
		failed:    failed,
		latency:   latency,
	}, nil
}

// Now 返回被包装调度器的时间
func (s *MonitoredScheduler) Now() time.Time {
	return s.scheduler.Now()
}

// Schedule 调度任务并记录指标
func (s *MonitoredScheduler) Schedule(action func()) Disposable {
	return s.scheduler.Schedule(s.wrap(action))
}

// ScheduleWithDelay 延迟调度任务并记录指标
func (s *MonitoredScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	return s.scheduler.ScheduleWithDelay(s.wrap(action), delay)
}

// SchedulePeriodic 周期调度任务并记录每次执行
func (s *MonitoredScheduler) SchedulePeriodic(action func(), initialDelay, period time.Duration) Disposable {
	return ScheduleRecurring(s, action, initialDelay, period)
}

// ScheduleWithContext 带上下文调度任务并记录指标
func (s *MonitoredScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// Stats 获取调度器计数
func (s *MonitoredScheduler) Stats() SchedulerStats {
	return SchedulerStats{
		TasksScheduled: s.stats.scheduled.Load(),
		TasksCompleted: s.stats.completed.Load(),
		TasksFailed:    s.stats.failed.Load(),
	}
}

func (s *MonitoredScheduler) wrap(action func()) func() {
	ctx := context.Background()
	s.stats.scheduled.Add(1)
	s.scheduled.Add(ctx, 1, s.attrs)

	return func() {
		start := time.Now()
		defer func() {
			s.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000, s.attrs)

			if r := recover(); r != nil {
				s.failed.Add(ctx, 1, s.attrs)
				s.stats.failed.Add(1)
				// 交给被包装的调度器按自己的策略处理
				panic(r)
			}
			s.completed.Add(ctx, 1, s.attrs)
			s.stats.completed.Add(1)
		}()

		action()
	}
}
