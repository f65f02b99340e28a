// Errors for rxstream
// 错误定义：构造期的配置错误和运行期的生产错误
package rxstream

import "errors"

// 构造期的配置错误，由工厂函数和操作符同步返回，从不经过 OnError
var (
	ErrNilProducer    = errors.New("rxstream: nil producer function")
	ErrNilSequence    = errors.New("rxstream: nil sequence")
	ErrNilChannel     = errors.New("rxstream: nil channel")
	ErrNilSource      = errors.New("rxstream: nil source observable")
	ErrNilScheduler   = errors.New("rxstream: nil scheduler")
	ErrNilCombiner    = errors.New("rxstream: nil combine function")
	ErrNilTransformer = errors.New("rxstream: nil transform function")
	ErrNegativeCount  = errors.New("rxstream: count must not be negative")
	ErrInvalidCount   = errors.New("rxstream: count must be positive")
	ErrInvalidPeriod  = errors.New("rxstream: period must be positive")
	ErrInvalidDelay   = errors.New("rxstream: delay must not be negative")
)

// ErrProducerPanic 包装生产者在产生数据时引发的panic，作为生产错误经 OnError 传播
var ErrProducerPanic = errors.New("rxstream: producer panicked")
