// Package fanout delivers state changes to subscribers. Each subscriber holds
// at most one pending value: a slow reader skips intermediate values and
// always sees the latest one.
package fanout

import "sync"

// Hub fans values of T out to subscribers.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	closed bool
}

// Subscribe registers a subscriber primed with current. The returned func
// removes the subscriber and closes its channel.
func (h *Hub[T]) Subscribe(current T) (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan T, 1)
	ch <- current

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	if h.subs == nil {
		h.subs = make(map[int]chan T)
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

// Publish replaces any unread value of every subscriber with v.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Close closes every subscriber channel. Later subscribers get a closed
// channel holding only their initial value.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
	h.closed = true
}

// Len returns the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
