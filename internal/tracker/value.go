package tracker

import (
	"slices"
	"sync"
)

// Value is an observable container. Subscribers run synchronously on the
// goroutine that called Set, in subscription order, and must not call Set on
// the same Value.
type Value[T any] struct {
	mu   sync.RWMutex
	emit sync.Mutex
	v    T
	subs map[uint64]func(T)
	next uint64
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		v:    initial,
		subs: make(map[uint64]func(T)),
	}
}

func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.v
}

// Set stores x and notifies every subscriber with it
func (v *Value[T]) Set(x T) {
	v.emit.Lock()
	defer v.emit.Unlock()

	v.mu.Lock()
	v.v = x
	ids := make([]uint64, 0, len(v.subs))
	for id := range v.subs {
		ids = append(ids, id)
	}
	fns := make([]func(T), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, v.subs[id])
	}
	v.mu.Unlock()

	for _, fn := range fns {
		fn(x)
	}
}

// Subscribe registers fn for future changes. The returned cancel func is
// idempotent.
func (v *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	v.mu.Lock()
	id := v.next
	v.next++
	v.subs[id] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			v.mu.Unlock()
		})
	}
}
