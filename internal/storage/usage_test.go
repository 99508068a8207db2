package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dohr-michael/netwatch/internal/events"
)

func openTestLedger(t *testing.T) *UsageLedger {
	t.Helper()
	l, err := OpenUsageLedger(filepath.Join(t.TempDir(), "db", "usage.db"))
	if err != nil {
		t.Fatalf("OpenUsageLedger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestUsageLedger_RecordAndSummary(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	now := time.Now()

	records := []UsageRecord{
		{EventID: "1", CreatedAt: now, Kind: "stream", Model: "gemini", Duration: 100 * time.Millisecond, OutputChars: 10},
		{EventID: "2", CreatedAt: now, Kind: "stream", Model: "gemini", Duration: 300 * time.Millisecond, OutputChars: 20},
		{EventID: "3", CreatedAt: now, Kind: "stream", Model: "gemini", Error: "rate limited"},
		{EventID: "4", CreatedAt: now, Kind: "generate", Model: "gemini", Duration: 50 * time.Millisecond, OutputChars: 5},
		{EventID: "5", CreatedAt: now.Add(-48 * time.Hour), Kind: "stream", Model: "gemini", OutputChars: 999},
	}
	for _, r := range records {
		if err := l.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	sum, err := l.Summary(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(sum) != 2 {
		t.Fatalf("expected 2 groups, got %+v", sum)
	}

	gen, stream := sum[0], sum[1]
	if gen.Kind != "generate" || gen.Calls != 1 || gen.OutputChars != 5 {
		t.Errorf("generate = %+v", gen)
	}
	if stream.Calls != 3 || stream.Failures != 1 || stream.OutputChars != 30 {
		t.Errorf("stream = %+v", stream)
	}
	if stream.AvgDuration < 100*time.Millisecond || stream.AvgDuration > 200*time.Millisecond {
		t.Errorf("avg duration = %v", stream.AvgDuration)
	}
}

func TestUsageLedger_AttachRecordsEvents(t *testing.T) {
	l := openTestLedger(t)
	bus := events.NewBus(16)
	defer bus.Close()
	l.Attach(bus)

	bus.Publish(events.NewTypedEvent(events.SourceTranscript, events.LLMCallPayload{
		Kind:        events.LLMCallStream,
		Provider:    "gemini",
		OutputChars: 42,
		Duration:    time.Second,
	}))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		sum, err := l.Summary(context.Background(), time.Now().Add(-time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if len(sum) == 1 {
			if sum[0].Model != "gemini" || sum[0].OutputChars != 42 {
				t.Fatalf("summary = %+v", sum[0])
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("llm call event was not recorded")
}
