package events

import (
	"errors"
	"slices"
	"sync"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("event bus is closed")

// Subscriber receives events on the bus dispatch goroutine. It must not
// block and must not publish synchronously on a closed bus.
type Subscriber func(Event)

type subscription struct {
	id      int
	types   []EventType
	handler Subscriber
}

func (s *subscription) matches(e Event) bool {
	return len(s.types) == 0 || slices.Contains(s.types, e.Type)
}

// Bus delivers events to subscribers in publish order from a single
// goroutine. Publish never blocks and never drops: pending events wait in
// an unbounded queue until dispatched.
type Bus struct {
	history *RingBuffer

	mu      sync.Mutex
	subs    []*subscription
	nextID  int
	queue   []Event
	wake    chan struct{}
	closed  bool
	drained chan struct{}
}

// NewBus starts a bus that remembers the last historySize events.
func NewBus(historySize int) *Bus {
	b := &Bus{
		history: NewRingBuffer(historySize),
		wake:    make(chan struct{}, 1),
		drained: make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Publish queues e for delivery.
func (b *Bus) Publish(e Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.queue = append(b.queue, e)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

func (b *Bus) dispatch() {
	defer close(b.drained)
	for {
		b.mu.Lock()
		batch := b.queue
		b.queue = nil
		closed := b.closed
		b.mu.Unlock()

		for _, e := range batch {
			b.history.Add(e)
			for _, h := range b.handlers(e) {
				h(e)
			}
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-b.wake
	}
}

func (b *Bus) handlers(e Event) []Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	var hs []Subscriber
	for _, s := range b.subs {
		if s.matches(e) {
			hs = append(hs, s.handler)
		}
	}
	return hs
}

// Subscribe registers handler for the given types, or every type when none
// are given. The returned func unsubscribes; it is safe to call twice.
func (b *Bus) Subscribe(handler Subscriber, types ...EventType) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, &subscription{id: id, types: types, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s *subscription) bool { return s.id == id })
	}
}

// SubscribeChan delivers matching events on a buffered channel. Events that
// find the channel full are dropped for this subscriber only. The returned
// func unsubscribes and closes the channel.
func (b *Bus) SubscribeChan(bufSize int, types ...EventType) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	var (
		mu     sync.Mutex
		closed bool
	)
	unsubscribe := b.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
		}
	}, types...)

	return ch, func() {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
}

// History returns up to limit recently dispatched events, oldest first.
func (b *Bus) History(limit int) []Event {
	return b.history.Get(limit)
}

// Close rejects further publishes and waits for queued events to be
// delivered. It must not be called from a subscriber.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.drained
		return
	}
	b.closed = true
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	<-b.drained
}
