package events

import "sync"

// RingBuffer keeps the last N events, oldest first.
type RingBuffer struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
}

// NewRingBuffer creates a buffer holding up to size events.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{events: make([]Event, size)}
}

// Add stores e, evicting the oldest event when full.
func (r *RingBuffer) Add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.next] = e
	r.next++
	if r.next == len(r.events) {
		r.next = 0
		r.full = true
	}
}

// Len returns the number of stored events.
func (r *RingBuffer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lenLocked()
}

func (r *RingBuffer) lenLocked() int {
	if r.full {
		return len(r.events)
	}
	return r.next
}

// Get returns up to n of the most recent events, oldest first.
func (r *RingBuffer) Get(n int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n = min(n, r.lenLocked())
	if n <= 0 {
		return nil
	}
	out := make([]Event, n)
	start := r.next - n
	if start < 0 {
		start += len(r.events)
	}
	for i := range out {
		out[i] = r.events[(start+i)%len(r.events)]
	}
	return out
}

// Clear drops every stored event.
func (r *RingBuffer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.events)
	r.next = 0
	r.full = false
}
