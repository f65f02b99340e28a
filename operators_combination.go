// Combination operators for rxstream
// 组合操作符：按到达顺序配对两个序列
package rxstream

import "sync"

// zipState 两侧各自的待配对队列。任一时刻最多只有一侧队列非空
type zipState[A, B, R any] struct {
	downstream Subscriber[R]
	combine    func(A, B) (R, error)

	mu        sync.Mutex
	left      []A
	right     []B
	leftDone  bool
	rightDone bool
	closed    bool
}

func (z *zipState[A, B, R]) onLeft(a A) {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.closed {
		return
	}
	if len(z.right) > 0 {
		b := z.right[0]
		z.right = z.right[1:]
		z.emit(a, b)
	} else {
		z.left = append(z.left, a)
	}
	z.checkComplete()
}

func (z *zipState[A, B, R]) onRight(b B) {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.closed {
		return
	}
	if len(z.left) > 0 {
		a := z.left[0]
		z.left = z.left[1:]
		z.emit(a, b)
	} else {
		z.right = append(z.right, b)
	}
	z.checkComplete()
}

func (z *zipState[A, B, R]) emit(a A, b B) {
	result, err := z.combine(a, b)
	if err != nil {
		z.fail(err)
		return
	}
	z.downstream.OnNext(result)
}

func (z *zipState[A, B, R]) onError(err error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.closed {
		return
	}
	z.fail(err)
}

func (z *zipState[A, B, R]) onLeftComplete() {
	z.mu.Lock()
	defer z.mu.Unlock()

	z.leftDone = true
	z.checkComplete()
}

func (z *zipState[A, B, R]) onRightComplete() {
	z.mu.Lock()
	defer z.mu.Unlock()

	z.rightDone = true
	z.checkComplete()
}

func (z *zipState[A, B, R]) IsDisposed() bool {
	return z.downstream.IsDisposed()
}

// checkComplete 已完成的一侧没有待配对项时，不可能再产生新的配对
func (z *zipState[A, B, R]) checkComplete() {
	if z.closed {
		return
	}
	if (z.leftDone && len(z.left) == 0) || (z.rightDone && len(z.right) == 0) {
		z.closed = true
		z.left, z.right = nil, nil
		z.downstream.OnComplete()
	}
}

func (z *zipState[A, B, R]) fail(err error) {
	z.closed = true
	z.left, z.right = nil, nil
	z.downstream.OnError(err)
}

// zipLeft 左侧上游的观察者
type zipLeft[A, B, R any] struct{ *zipState[A, B, R] }

func (l zipLeft[A, B, R]) OnNext(value A)    { l.onLeft(value) }
func (l zipLeft[A, B, R]) OnError(err error) { l.onError(err) }
func (l zipLeft[A, B, R]) OnComplete()       { l.onLeftComplete() }

// zipRight 右侧上游的观察者
type zipRight[A, B, R any] struct{ *zipState[A, B, R] }

func (r zipRight[A, B, R]) OnNext(value B)    { r.onRight(value) }
func (r zipRight[A, B, R]) OnError(err error) { r.onError(err) }
func (r zipRight[A, B, R]) OnComplete()       { r.onRightComplete() }

// Zip 将两个Observable最早的未配对项按顺序组合。
// 任一侧完成且其队列为空时完成；任一侧或 combine 出错时立即出错并释放两侧上游
func Zip[A, B, R any](a Observable[A], b Observable[B], combine func(A, B) (R, error)) (Observable[R], error) {
	if a == nil || b == nil {
		return nil, ErrNilSource
	}
	if combine == nil {
		return nil, ErrNilCombiner
	}

	return newObservable(func(s Subscriber[R]) {
		state := &zipState[A, B, R]{downstream: s, combine: combine}

		s.Add(a.Subscribe(zipLeft[A, B, R]{state}))
		if s.IsDisposed() {
			return
		}
		s.Add(b.Subscribe(zipRight[A, B, R]{state}))
	}), nil
}
