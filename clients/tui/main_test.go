package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dohr-michael/netwatch/internal/enhance"
	wsprotocol "github.com/dohr-michael/netwatch/internal/gateway/ws"
	"github.com/dohr-michael/netwatch/internal/netmetrics"
	"github.com/dohr-michael/netwatch/internal/transcript"
)

type fakeGateway struct {
	sent    []string
	sendErr error
	lang    string
	group   string
	value   string
	cleared bool
}

func (f *fakeGateway) SendMessage(_ context.Context, content string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, content)
	return "turn_sent", nil
}

func (f *fakeGateway) Transcript(context.Context) (transcript.Snapshot, error) {
	return transcript.Snapshot{}, nil
}

func (f *fakeGateway) Metrics(context.Context) (netmetrics.Snapshot, error) {
	return netmetrics.Snapshot{}, nil
}

func (f *fakeGateway) Options(context.Context) (wsprotocol.Options, error) {
	return wsprotocol.Options{Languages: enhance.Languages, Groups: enhance.Groups}, nil
}

func (f *fakeGateway) SelectLanguage(_ context.Context, lang string) (enhance.Selection, error) {
	f.lang = lang
	return enhance.Selection{Language: lang, Explicit: true}, nil
}

func (f *fakeGateway) SelectEnhancement(_ context.Context, group, value string) (enhance.Selection, error) {
	f.group, f.value = group, value
	return enhance.Selection{Language: enhance.DefaultLanguage, Group: group, Enhancement: value, Explicit: true}, nil
}

func (f *fakeGateway) ClearSelection(context.Context) (enhance.Selection, error) {
	f.cleared = true
	return enhance.Selection{Language: enhance.DefaultLanguage}, nil
}

func (f *fakeGateway) ReadFrame(ctx context.Context) (wsprotocol.Frame, error) {
	<-ctx.Done()
	return wsprotocol.Frame{}, ctx.Err()
}

func newTestModel(gw Gateway) MainModel {
	return NewMainModel(context.Background(), gw)
}

func step(t *testing.T, m MainModel, msgs ...any) MainModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(MainModel)
	}
	return m
}

func TestStreamLifecycle(t *testing.T) {
	m := newTestModel(&fakeGateway{})
	now := time.Now()

	m = step(t, m,
		TurnAppendedMsg{Turn: transcript.Turn{ID: "u1", Role: transcript.RoleUser, Text: "how is my network?", CreatedAt: now}},
		TurnAppendedMsg{Turn: transcript.Turn{ID: "a1", Role: transcript.RoleAssistant, CreatedAt: now}},
		StreamStartMsg{TurnID: "a1"},
		StreamDeltaMsg{TurnID: "a1", Content: "All "},
		StreamDeltaMsg{TurnID: "a1", Content: "good."},
	)
	if m.pendingID != "a1" {
		t.Fatalf("pendingID = %q", m.pendingID)
	}
	if len(m.turns) != 2 || m.turns[1].Text != "All good." {
		t.Fatalf("turns = %+v", m.turns)
	}

	m = step(t, m,
		StreamEndMsg{TurnID: "a1"},
		AssistantMessageMsg{TurnID: "a1", Content: "All good."},
	)
	if m.pendingID != "" {
		t.Errorf("still pending after end")
	}
	if m.failed["a1"] {
		t.Error("successful turn marked failed")
	}
}

func TestAssistantErrorReplacesText(t *testing.T) {
	m := newTestModel(&fakeGateway{})
	m = step(t, m,
		StreamStartMsg{TurnID: "a1"},
		StreamDeltaMsg{TurnID: "a1", Content: "partial"},
		StreamEndMsg{TurnID: "a1"},
		AssistantMessageMsg{TurnID: "a1", Content: transcript.DefaultErrorMessage, Error: "rate limited"},
	)
	if m.turns[0].Text != transcript.DefaultErrorMessage {
		t.Errorf("text = %q", m.turns[0].Text)
	}
	if !m.failed["a1"] {
		t.Error("turn not marked failed")
	}
}

func TestDuplicateTurnsIgnored(t *testing.T) {
	m := newTestModel(&fakeGateway{})
	turn := transcript.Turn{ID: "u1", Role: transcript.RoleUser, Text: "hi"}
	m = step(t, m,
		TurnAppendedMsg{Turn: turn},
		SnapshotMsg{Snapshot: transcript.Snapshot{Turns: []transcript.Turn{turn}}},
		TurnAppendedMsg{Turn: turn},
	)
	if len(m.turns) != 1 {
		t.Errorf("turns = %d, want 1", len(m.turns))
	}
}

func TestSnapshotKeepsLaterTurns(t *testing.T) {
	m := newTestModel(&fakeGateway{})
	m = step(t, m,
		TurnAppendedMsg{Turn: transcript.Turn{ID: "u2", Role: transcript.RoleUser, Text: "second"}},
		SnapshotMsg{Snapshot: transcript.Snapshot{
			Turns:         []transcript.Turn{{ID: "u1", Role: transcript.RoleUser, Text: "first"}, {ID: "a1", Role: transcript.RoleAssistant}},
			Pending:       true,
			PendingTurnID: "a1",
		}},
	)
	if len(m.turns) != 3 || m.turns[0].ID != "u1" || m.turns[2].ID != "u2" {
		t.Fatalf("turns = %+v", m.turns)
	}
	if m.pendingID != "a1" {
		t.Errorf("pendingID = %q", m.pendingID)
	}
}

func TestSubmitSendsMessage(t *testing.T) {
	gw := &fakeGateway{}
	m := newTestModel(gw)
	m.input.SetValue("  is latency ok?  ")

	next, cmd := m.submit()
	m = next.(MainModel)
	if cmd == nil {
		t.Fatal("no command")
	}
	if msg := cmd(); msg != (SentMsg{TurnID: "turn_sent"}) {
		t.Errorf("msg = %#v", msg)
	}
	if len(gw.sent) != 1 || gw.sent[0] != "is latency ok?" {
		t.Errorf("sent = %q", gw.sent)
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}
}

func TestSubmitWhitespaceIsNoop(t *testing.T) {
	gw := &fakeGateway{}
	m := newTestModel(gw)
	m.input.SetValue("   ")
	if _, cmd := m.submit(); cmd != nil {
		t.Error("whitespace produced a command")
	}
}

func TestSubmitWhilePending(t *testing.T) {
	gw := &fakeGateway{}
	m := newTestModel(gw)
	m = step(t, m, StreamStartMsg{TurnID: "a1"})
	m.input.SetValue("again")

	next, cmd := m.submit()
	m = next.(MainModel)
	if cmd != nil {
		t.Error("message sent while pending")
	}
	if !m.noticeErr || m.input.Value() != "again" {
		t.Errorf("notice=%q input=%q", m.notice, m.input.Value())
	}
}

func TestSendErrorShowsNotice(t *testing.T) {
	gw := &fakeGateway{sendErr: errors.New("a response is already in progress")}
	m := newTestModel(gw)
	m.input.SetValue("hi")
	_, cmd := m.submit()
	m = step(t, m, cmd())
	if !m.noticeErr || !strings.Contains(m.notice, "in progress") {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestSlashCommands(t *testing.T) {
	gw := &fakeGateway{}
	m := newTestModel(gw)

	m.input.SetValue("/lang Spanish")
	next, cmd := m.submit()
	m = step(t, next.(MainModel), cmd())
	if gw.lang != "Spanish" || m.selection.Language != "Spanish" {
		t.Errorf("lang = %q selection = %+v", gw.lang, m.selection)
	}

	m.input.SetValue("/emotion primary Fear")
	next, cmd = m.submit()
	m = step(t, next.(MainModel), cmd())
	if gw.group != "primary_emotions" || gw.value != "Fear" || m.selection.Enhancement != "Fear" {
		t.Errorf("group=%q value=%q selection=%+v", gw.group, gw.value, m.selection)
	}

	m.input.SetValue("/clear")
	next, cmd = m.submit()
	m = step(t, next.(MainModel), cmd())
	if !gw.cleared || m.selection.Enhancement != "" {
		t.Errorf("cleared=%v selection=%+v", gw.cleared, m.selection)
	}
}

func TestUnknownSlashCommand(t *testing.T) {
	m := newTestModel(&fakeGateway{})
	m.input.SetValue("/dance")
	next, cmd := m.submit()
	m = next.(MainModel)
	if cmd != nil || !m.noticeErr {
		t.Errorf("cmd=%v notice=%q", cmd, m.notice)
	}
}

func TestStatusBarShowsMetrics(t *testing.T) {
	m := newTestModel(&fakeGateway{})
	m = step(t, m, MetricsMsg{Snapshot: netmetrics.Snapshot{
		Bandwidth:  netmetrics.Bandwidth{Upload: 42.5, Download: 120},
		Latency:    netmetrics.Latency{Current: 130},
		PacketLoss: netmetrics.PacketLoss{Current: 0.25},
		UpdatedAt:  time.Now(),
	}})
	bar := m.statusBar()
	for _, want := range []string{"42.5", "120.0", "130 ms", "0.25%"} {
		if !strings.Contains(bar, want) {
			t.Errorf("status bar %q missing %q", bar, want)
		}
	}
}

func TestDisconnected(t *testing.T) {
	m := newTestModel(&fakeGateway{})
	m = step(t, m, StreamStartMsg{TurnID: "a1"}, DisconnectedMsg{Err: errors.New("eof")})
	if !m.disconnected || m.pendingID != "" {
		t.Errorf("disconnected=%v pending=%q", m.disconnected, m.pendingID)
	}
	m.input.SetValue("hello")
	if _, cmd := m.submit(); cmd != nil {
		t.Error("sent while disconnected")
	}
}
