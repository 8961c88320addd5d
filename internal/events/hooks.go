package events

import (
	"sort"
	"sync"
)

// Hooks holds synchronous callbacks that run, in registration order, on Fire.
// Use it where every listener must observe every value (result sinks),
// and Broadcaster where dropping stale values is fine (rendering).
type Hooks[T any] struct {
	mu     sync.RWMutex
	fns    map[uint64]func(T)
	nextID uint64
}

func NewHooks[T any]() *Hooks[T] {
	return &Hooks[T]{fns: make(map[uint64]func(T))}
}

// Add registers fn and returns a function that removes it.
func (h *Hooks[T]) Add(fn func(T)) func() {
	if fn == nil {
		panic("events: hook cannot be nil")
	}
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.fns[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.fns, id)
		h.mu.Unlock()
	}
}

// Fire calls every hook with v. Hooks are invoked outside the lock so they
// may add or remove hooks themselves.
func (h *Hooks[T]) Fire(v T) {
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.fns))
	for id := range h.fns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.fns[id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (h *Hooks[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.fns)
}
