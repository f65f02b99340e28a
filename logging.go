// Logging for rxstream
// 包级日志：未处理的错误和被恢复的panic通过 slog 记录
package rxstream

import (
	"log/slog"
	"sync/atomic"
)

var packageLogger atomic.Pointer[slog.Logger]

// SetLogger 替换引擎使用的日志记录器，nil 恢复为 slog.Default()
func SetLogger(logger *slog.Logger) {
	packageLogger.Store(logger)
}

// logger 返回当前日志记录器
func logger() *slog.Logger {
	if l := packageLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// logUnhandledError 记录没有错误处理器的观察者收到的错误
func logUnhandledError(err error) {
	logger().Error("unhandled observable error",
		slog.String("error", err.Error()),
	)
}

// logRecoveredPanic 记录调度任务中被恢复的panic
func logRecoveredPanic(scheduler string, recovered any) {
	logger().Error("scheduled action panicked",
		slog.String("scheduler", scheduler),
		slog.Any("panic", recovered),
	)
}
