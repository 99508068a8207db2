package events

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	var received []Event

	bus.Subscribe(func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	}, EventTurnAppended)

	bus.Publish(NewTypedEvent(SourceTranscript, TurnAppendedPayload{TurnID: "t1", Role: "user", Text: "hello"}))
	bus.Publish(NewTypedEvent(SourceTranscript, AssistantStreamPayload{Phase: StreamPhaseStart}))

	waitFor(t, func() bool { return len(bus.History(10)) == 2 })

	mu.Lock()
	defer mu.Unlock()

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Type != EventTurnAppended {
		t.Errorf("expected turn.appended, got %s", received[0].Type)
	}
}

func TestBusSubscribeAll(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	count := 0

	bus.Subscribe(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(NewTypedEvent(SourceTranscript, TurnAppendedPayload{Text: "hello"}))
	bus.Publish(NewTypedEvent(SourceTranscript, AssistantStreamPayload{Phase: StreamPhaseStart}))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	})
}

func TestBusPreservesOrder(t *testing.T) {
	bus := NewBus(256)
	defer bus.Close()

	var mu sync.Mutex
	var indexes []int

	bus.Subscribe(func(e Event) {
		p, ok := GetAssistantStreamPayload(e)
		if !ok {
			return
		}
		mu.Lock()
		indexes = append(indexes, p.Index)
		mu.Unlock()
	}, EventAssistantStream)

	for i := 1; i <= 100; i++ {
		bus.Publish(NewTypedEvent(SourceTranscript, AssistantStreamPayload{Phase: StreamPhaseDelta, Index: i}))
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(indexes) == 100
	})

	mu.Lock()
	defer mu.Unlock()
	for i, idx := range indexes {
		if idx != i+1 {
			t.Fatalf("delta %d delivered at position %d", idx, i)
		}
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	unsub := bus.Subscribe(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	unsub()

	bus.Publish(NewTypedEvent(SourceTranscript, TurnAppendedPayload{Text: "x"}))
	waitFor(t, func() bool { return len(bus.History(10)) == 1 })

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", count)
	}
}

func TestBusClosed(t *testing.T) {
	bus := NewBus(4)
	bus.Close()
	bus.Close() // idempotent

	if err := bus.Publish(NewTypedEvent(SourceTranscript, TurnAppendedPayload{Text: "dropped"})); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("expected ErrBusClosed, got %v", err)
	}
}

func TestBusCloseDeliversQueued(t *testing.T) {
	bus := NewBus(2)

	var mu sync.Mutex
	count := 0
	release := make(chan struct{})
	bus.Subscribe(func(e Event) {
		<-release
		mu.Lock()
		count++
		mu.Unlock()
	})

	// History is smaller than the backlog; nothing may be dropped.
	for i := 0; i < 50; i++ {
		if err := bus.Publish(NewTypedEvent(SourceMetrics, MetricsSamplePayload{Latency: float64(i)})); err != nil {
			t.Fatal(err)
		}
	}
	close(release)
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	if count != 50 {
		t.Fatalf("delivered %d events, want 50", count)
	}
	if n := len(bus.History(10)); n != 2 {
		t.Fatalf("history holds %d events, want 2", n)
	}
}

func TestEventTypeInternal(t *testing.T) {
	if !EventLLMCall.Internal() || !EventConfigReloaded.Internal() {
		t.Error("internal events not flagged")
	}
	if EventAssistantStream.Internal() {
		t.Error("assistant.stream flagged internal")
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(3)

	for i := 0; i < 5; i++ {
		rb.Add(NewEvent(EventTurnAppended, SourceTranscript, map[string]any{"i": i}))
	}

	got := rb.Get(10)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Payload["i"] != 2 || got[2].Payload["i"] != 4 {
		t.Fatalf("expected oldest-first window [2..4], got %v..%v", got[0].Payload["i"], got[2].Payload["i"])
	}

	if rb.Len() != 3 {
		t.Fatalf("Len = %d", rb.Len())
	}
	rb.Clear()
	if len(rb.Get(10)) != 0 {
		t.Fatal("expected empty buffer after Clear")
	}
}

func TestSubscribeChan(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	ch, unsub := bus.SubscribeChan(10, EventMetricsSample)

	bus.Publish(NewTypedEvent(SourceMetrics, MetricsSamplePayload{Latency: 42}))

	select {
	case e := <-ch:
		if e.Type != EventMetricsSample {
			t.Errorf("expected metrics.sample, got %s", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	unsub()
	unsub() // safe twice
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
}
