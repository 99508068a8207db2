package ws

import (
	"encoding/json"
	"testing"
)

func TestNewRequestFrame(t *testing.T) {
	f, err := NewRequestFrame("req-1", MethodSendMessage, SendMessageParams{Content: "What is my latency?"})
	if err != nil {
		t.Fatalf("NewRequestFrame: %v", err)
	}

	data, err := MarshalFrame(f)
	if err != nil {
		t.Fatalf("MarshalFrame: %v", err)
	}
	got, err := UnmarshalFrame(data)
	if err != nil {
		t.Fatalf("UnmarshalFrame: %v", err)
	}

	if got.Type != FrameTypeRequest || got.ID != "req-1" || got.Method != "send_message" {
		t.Fatalf("unexpected frame: %+v", got)
	}
	var p SendMessageParams
	if err := json.Unmarshal(got.Params, &p); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	if p.Content != "What is my latency?" {
		t.Fatalf("expected content, got %q", p.Content)
	}
}

func TestNewRequestFrame_NoParams(t *testing.T) {
	f, err := NewRequestFrame("req-2", MethodGetTranscript, nil)
	if err != nil {
		t.Fatal(err)
	}
	if f.Params != nil {
		t.Fatalf("expected no params, got %s", f.Params)
	}
}

func TestNewEventFrame(t *testing.T) {
	f, err := NewEventFrame("assistant.stream", map[string]string{"content": "hi"})
	if err != nil {
		t.Fatalf("NewEventFrame: %v", err)
	}
	if f.Type != FrameTypeEvent {
		t.Fatalf("expected type %q, got %q", FrameTypeEvent, f.Type)
	}
	if f.Event != "assistant.stream" {
		t.Fatalf("expected event %q, got %q", "assistant.stream", f.Event)
	}

	var p map[string]string
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p["content"] != "hi" {
		t.Fatalf("expected payload.content %q, got %q", "hi", p["content"])
	}
}

func TestNewResponseFrame_OK(t *testing.T) {
	f, err := NewResponseFrame("req-5", true, SendMessageResult{TurnID: "turn_1"}, "")
	if err != nil {
		t.Fatalf("NewResponseFrame: %v", err)
	}
	if f.Type != FrameTypeResponse || f.ID != "req-5" {
		t.Fatalf("unexpected frame: %+v", f)
	}
	if f.OK == nil || !*f.OK {
		t.Fatal("expected ok=true")
	}

	var p SendMessageResult
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.TurnID != "turn_1" {
		t.Fatalf("expected turn_id %q, got %q", "turn_1", p.TurnID)
	}
}

func TestNewResponseFrame_Error(t *testing.T) {
	f, err := NewResponseFrame("req-6", false, nil, "a reply is already in progress")
	if err != nil {
		t.Fatalf("NewResponseFrame: %v", err)
	}
	if f.OK == nil || *f.OK {
		t.Fatal("expected ok=false")
	}
	if f.Error != "a reply is already in progress" {
		t.Fatalf("unexpected error %q", f.Error)
	}
	if f.Payload != nil {
		t.Fatalf("expected nil payload, got %s", string(f.Payload))
	}
}
