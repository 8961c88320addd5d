package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for value")
	}
	var zero T
	return zero
}

func assertEmpty[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Errorf("unexpected value received: %v", v)
	default:
	}
}

func TestBroadcaster_ListenNotify(t *testing.T) {
	b := NewBroadcaster[string](false)

	ch := make(chan string, 4)
	unregister := b.Listen(ch)
	assert.Equal(t, 1, b.ListenerCount())

	b.Notify("level 1")
	b.Notify("level 2")

	assert.Equal(t, "level 1", receive(t, ch))
	assert.Equal(t, "level 2", receive(t, ch))

	unregister()
	assert.Equal(t, 0, b.ListenerCount())

	b.Notify("level 3")
	assertEmpty(t, ch)
}

func TestBroadcaster_MultipleListeners(t *testing.T) {
	b := NewBroadcaster[int](false)

	ch1 := make(chan int, 2)
	ch2 := make(chan int, 2)
	defer b.Listen(ch1)()
	defer b.Listen(ch2)()

	b.Notify(7)

	assert.Equal(t, 7, receive(t, ch1))
	assert.Equal(t, 7, receive(t, ch2))
}

func TestBroadcaster_ReplayLastValue(t *testing.T) {
	b := NewBroadcaster[string](true)

	early := make(chan string, 1)
	defer b.Listen(early)()
	assertEmpty(t, early)

	b.Notify("first")
	assert.Equal(t, "first", receive(t, early))

	late := make(chan string, 1)
	defer b.Listen(late)()
	assert.Equal(t, "first", receive(t, late))

	last, ok := b.Last()
	require.True(t, ok)
	assert.Equal(t, "first", last)
}

func TestBroadcaster_NoReplayWhenDisabled(t *testing.T) {
	b := NewBroadcaster[string](false)
	b.Notify("before")

	ch := make(chan string, 1)
	defer b.Listen(ch)()
	assertEmpty(t, ch)

	b.Notify("after")
	assert.Equal(t, "after", receive(t, ch))
}

func TestBroadcaster_FullListenerDoesNotBlock(t *testing.T) {
	b := NewBroadcaster[int](false)

	ch := make(chan int, 1)
	defer b.Listen(ch)()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Notify(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full listener")
	}

	assert.Equal(t, 9, receive(t, ch), "stale values are replaced")
	assertEmpty(t, ch)
	assert.Equal(t, uint64(9), b.Dropped())
}

func TestBroadcaster_SlowListenerEndsOnLatest(t *testing.T) {
	b := NewBroadcaster[string](true)
	b.Notify("dashboard")

	ch := make(chan string, 1)
	defer b.Listen(ch)()

	// the replayed value is still pending when the next two arrive
	b.Notify("stats")
	b.Notify("calculator")

	assert.Equal(t, "calculator", receive(t, ch))
	assertEmpty(t, ch)
}

func TestBroadcaster_UnbufferedListenerCountsDrop(t *testing.T) {
	b := NewBroadcaster[int](false)
	ch := make(chan int)
	defer b.Listen(ch)()

	b.Notify(1)
	assert.Equal(t, uint64(1), b.Dropped())
}

func TestBroadcaster_UnregisterTwiceIsSafe(t *testing.T) {
	b := NewBroadcaster[int](false)
	ch1 := make(chan int, 1)
	ch2 := make(chan int, 1)
	unregister := b.Listen(ch1)
	defer b.Listen(ch2)()

	unregister()
	unregister()
	assert.Equal(t, 1, b.ListenerCount())
}

func TestBroadcaster_NilChannelPanics(t *testing.T) {
	b := NewBroadcaster[int](false)
	assert.Panics(t, func() { b.Listen(nil) })
}

func TestBroadcaster_ConcurrentUse(t *testing.T) {
	b := NewBroadcaster[int](true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			ch := make(chan int, 16)
			unregister := b.Listen(ch)
			time.Sleep(time.Millisecond)
			unregister()
		}(i)
		go func(n int) {
			defer wg.Done()
			b.Notify(n)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, b.ListenerCount())
	_, ok := b.Last()
	assert.True(t, ok)
}

func TestHooks_FireInOrder(t *testing.T) {
	h := NewHooks[string]()

	var got []string
	h.Add(func(v string) { got = append(got, "a:"+v) })
	remove := h.Add(func(v string) { got = append(got, "b:"+v) })
	h.Add(func(v string) { got = append(got, "c:"+v) })
	assert.Equal(t, 3, h.Len())

	h.Fire("x")
	assert.Equal(t, []string{"a:x", "b:x", "c:x"}, got)

	remove()
	got = nil
	h.Fire("y")
	assert.Equal(t, []string{"a:y", "c:y"}, got)
}

func TestHooks_HookMayRemoveItself(t *testing.T) {
	h := NewHooks[int]()

	calls := 0
	var remove func()
	remove = h.Add(func(int) {
		calls++
		remove()
	})

	h.Fire(1)
	h.Fire(2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, h.Len())
}

func TestHooks_NilPanics(t *testing.T) {
	h := NewHooks[int]()
	assert.Panics(t, func() { h.Add(nil) })
}
