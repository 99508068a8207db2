package transcript

import (
	"context"
	"sync"
)

// State is the lifecycle of a single submission.
type State int

const (
	StateStreaming State = iota
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle tracks one submission. It owns the id of the assistant turn the
// stream writes into.
type Handle struct {
	turnID string
	done   chan struct{}

	mu    sync.Mutex
	state State
	err   error
}

func newHandle(turnID string) *Handle {
	return &Handle{turnID: turnID, done: make(chan struct{}), state: StateStreaming}
}

// TurnID returns the id of the assistant turn being filled.
func (h *Handle) TurnID() string { return h.turnID }

// Done is closed once the submission reached a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// State returns the current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the failure cause, nil unless State is StateFailed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until the submission finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	if err != nil {
		h.state, h.err = StateFailed, err
	} else {
		h.state = StateCompleted
	}
	h.mu.Unlock()
	close(h.done)
}
