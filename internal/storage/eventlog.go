// Package storage persists diagnostics: a JSONL event log and a sqlite ledger
// of model calls. Turn text is never written.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dohr-michael/netwatch/internal/events"
)

// redactedKeys are payload fields that carry conversation text.
var redactedKeys = []string{"text", "content"}

// EventLogger persists bus events to daily JSONL files.
type EventLogger struct {
	dir         string
	bus         *events.Bus
	unsubscribe func()

	mu  sync.Mutex
	now func() time.Time
}

// NewEventLogger creates an EventLogger that subscribes to all bus events
// and writes them as JSONL to dir, one file per day.
func NewEventLogger(dir string, bus *events.Bus) *EventLogger {
	el := &EventLogger{
		dir: dir,
		bus: bus,
		now: time.Now,
	}
	el.unsubscribe = bus.Subscribe(el.handleEvent)
	return el
}

// Close unsubscribes the logger from the event bus.
func (el *EventLogger) Close() {
	if el.unsubscribe != nil {
		el.unsubscribe()
	}
}

func (el *EventLogger) handleEvent(e events.Event) {
	// Stream deltas are too noisy; the end phase and assistant.message cover them.
	if e.Type == events.EventAssistantStream {
		if p, ok := events.GetAssistantStreamPayload(e); ok && p.Phase == events.StreamPhaseDelta {
			return
		}
	}
	// Metrics samples are high frequency and reproducible.
	if e.Type == events.EventMetricsSample {
		return
	}
	_ = el.writeEvent(redact(e))
}

// redact drops conversation text from the payload, keeping its length.
func redact(e events.Event) events.Event {
	if len(e.Payload) == 0 {
		return e
	}
	payload := make(map[string]any, len(e.Payload))
	for k, v := range e.Payload {
		payload[k] = v
	}
	for _, k := range redactedKeys {
		if s, ok := payload[k].(string); ok {
			delete(payload, k)
			payload[k+"_len"] = len(s)
		}
	}
	e.Payload = payload
	return e
}

func (el *EventLogger) writeEvent(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	el.mu.Lock()
	defer el.mu.Unlock()

	path := el.logPath(el.now())

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

func (el *EventLogger) logPath(t time.Time) string {
	return filepath.Join(el.dir, "events-"+t.Format("2006-01-02")+".jsonl")
}
