package events

import (
	"sync"
	"sync/atomic"
)

// Broadcaster fans a value out to every registered channel.
// Sends never block: when a listener's buffer is full its oldest pending
// value is discarded to make room, so a slow listener always ends up with
// the most recent value.
type Broadcaster[T any] struct {
	mu      sync.RWMutex
	subs    map[uint64]chan T
	nextID  uint64
	replay  bool
	last    T
	hasLast bool
	dropped atomic.Uint64
}

// NewBroadcaster creates a Broadcaster.
// replay: new listeners immediately receive the most recent value, if any.
func NewBroadcaster[T any](replay bool) *Broadcaster[T] {
	return &Broadcaster[T]{
		subs:   make(map[uint64]chan T),
		replay: replay,
	}
}

// Listen registers ch and returns a function that removes it again.
func (b *Broadcaster[T]) Listen(ch chan T) func() {
	if ch == nil {
		panic("events: listener channel cannot be nil")
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	if b.replay && b.hasLast {
		b.deliver(ch, b.last)
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Notify publishes v to all listeners. Deliveries are serialised so that
// every listener observes values in publish order.
func (b *Broadcaster[T]) Notify(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = v
	b.hasLast = true
	for _, ch := range b.subs {
		b.deliver(ch, v)
	}
}

// deliver must be called with mu held.
func (b *Broadcaster[T]) deliver(ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}

	// Full: replace the stale value. Only deliver sends on ch, so once one
	// value is drained the retry fits unless ch is unbuffered.
	select {
	case <-ch:
		b.dropped.Add(1)
	default:
	}
	select {
	case ch <- v:
	default:
		b.dropped.Add(1)
	}
}

// Last returns the most recently published value.
func (b *Broadcaster[T]) Last() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.hasLast
}

// ListenerCount returns the number of registered listeners.
func (b *Broadcaster[T]) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many values were discarded because a listener was full.
func (b *Broadcaster[T]) Dropped() uint64 {
	return b.dropped.Load()
}
