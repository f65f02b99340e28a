// Observer registry for rxstream
// 观察者注册表：竞技场式槽位加代数句柄，供主题多播使用
package rxstream

import "sync"

// registryHandle 注册表中观察者的稳定句柄。槽位复用后旧句柄因代数不同而失效
type registryHandle struct {
	index      int
	generation uint64
}

type registrySlot[T any] struct {
	observer   Observer[T]
	generation uint64
	live       bool
}

// observerRegistry 竞技场式的观察者注册表：槽位数组加空闲链表，
// order 记录存活槽位的插入顺序，快照按插入顺序返回
type observerRegistry[T any] struct {
	mu    sync.RWMutex
	slots []registrySlot[T]
	free  []int
	order []int
}

func newObserverRegistry[T any]() *observerRegistry[T] {
	return &observerRegistry[T]{}
}

func (r *observerRegistry[T]) add(observer Observer[T]) registryHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var index int
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		index = len(r.slots)
		r.slots = append(r.slots, registrySlot[T]{})
	}

	slot := &r.slots[index]
	slot.generation++
	slot.observer = observer
	slot.live = true
	r.order = append(r.order, index)

	return registryHandle{index: index, generation: slot.generation}
}

// remove 移除句柄对应的观察者，句柄已失效时返回false
func (r *observerRegistry[T]) remove(h registryHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.index < 0 || h.index >= len(r.slots) {
		return false
	}
	slot := &r.slots[h.index]
	if !slot.live || slot.generation != h.generation {
		return false
	}

	slot.live = false
	slot.observer = nil
	r.free = append(r.free, h.index)
	for i, index := range r.order {
		if index == h.index {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// snapshot 按插入顺序复制当前的观察者
func (r *observerRegistry[T]) snapshot() []Observer[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	observers := make([]Observer[T], 0, len(r.order))
	for _, index := range r.order {
		observers = append(observers, r.slots[index].observer)
	}
	return observers
}

func (r *observerRegistry[T]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
