package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/netwatch/internal/enhance"
	"github.com/dohr-michael/netwatch/internal/events"
	"github.com/dohr-michael/netwatch/internal/gateway/ws"
	"github.com/dohr-michael/netwatch/internal/netmetrics"
	"github.com/dohr-michael/netwatch/internal/transcript"
)

// waitForEvents polls the bus history until at least n events are present.
func waitForEvents(t *testing.T, bus *events.Bus, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(bus.History(100)) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("bus history has %d events, want %d", len(bus.History(100)), n)
}

// gatedModel streams one chunk after release is closed.
type gatedModel struct {
	release chan struct{}
}

func (m gatedModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage("ok", nil), nil
}

func (m gatedModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	sr, sw := schema.Pipe[*schema.Message](1)
	go func() {
		defer sw.Close()
		select {
		case <-m.release:
			sw.Send(schema.AssistantMessage("Latency is 45ms.", nil), nil)
		case <-ctx.Done():
			sw.Send(nil, ctx.Err())
		}
	}()
	return sr, nil
}

type modelSource struct{ m model.BaseChatModel }

func (s modelSource) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	return s.m, nil
}

type testServer struct {
	*Server
	ctrl    *transcript.Controller
	sim     *netmetrics.Simulator
	release chan struct{}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	bus := events.NewBus(64)
	t.Cleanup(func() { bus.Close() })

	release := make(chan struct{})
	ctrl := transcript.NewController(transcript.Config{Models: modelSource{m: gatedModel{release: release}}, Bus: bus})
	t.Cleanup(ctrl.Close)

	sim := netmetrics.NewSimulator(netmetrics.Config{Bus: bus})
	srv := NewServer(bus, ws.Services{Transcript: ctrl, Metrics: sim, Selector: enhance.NewSelector(bus)}, "localhost", 0)
	t.Cleanup(srv.hub.Close)

	return &testServer{Server: srv, ctrl: ctrl, sim: sim, release: release}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
		Pending bool   `json:"pending"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" || body.Clients != 0 || body.Pending {
		t.Fatalf("health = %+v", body)
	}
}

func TestHandleEvents_Empty(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/events", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body []any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 0 {
		t.Fatalf("expected empty array, got %d items", len(body))
	}
}

func TestHandleEvents_LimitAndHidden(t *testing.T) {
	srv := newTestServer(t)

	if _, err := srv.ctrl.AppendTurn(transcript.RoleUser, "secret", true); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		srv.sim.Sample()
	}
	waitForEvents(t, srv.bus, 11)

	w := srv.do(t, http.MethodGet, "/api/events?limit=5", "")
	var body []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 5 {
		t.Fatalf("expected 5 events with limit=5, got %d", len(body))
	}

	w = srv.do(t, http.MethodGet, "/api/events?limit=100", "")
	body = nil
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	for _, e := range body {
		if e["type"] == string(events.EventTurnAppended) {
			t.Fatal("hidden turn event exposed")
		}
	}

	if w := srv.do(t, http.MethodGet, "/api/events?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func decodeEvents(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var body []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHandleEvents_LimitCountsPublicEvents(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 5; i++ {
		srv.sim.Sample()
	}
	if _, err := srv.ctrl.AppendTurn(transcript.RoleUser, "secret", true); err != nil {
		t.Fatal(err)
	}
	srv.bus.Publish(events.NewTypedEvent(events.SourceTranscript, events.LLMCallPayload{Kind: events.LLMCallGenerate}))
	srv.bus.Publish(events.NewTypedEvent(events.SourceGateway, events.ConfigReloadedPayload{Path: "x"}))
	waitForEvents(t, srv.bus, 8)

	body := decodeEvents(t, srv.do(t, http.MethodGet, "/api/events?limit=5", ""))
	if len(body) != 5 {
		t.Fatalf("expected 5 events with limit=5, got %d", len(body))
	}
	for _, e := range body {
		if e["type"] != string(events.EventMetricsSample) {
			t.Errorf("unexpected event served: %v", e["type"])
		}
	}

	body = decodeEvents(t, srv.do(t, http.MethodGet, "/api/events?limit=2", ""))
	if len(body) != 2 {
		t.Fatalf("expected 2 events with limit=2, got %d", len(body))
	}
}

func TestSendMessage_Lifecycle(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/messages", `{"content":"What is my latency?"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var res ws.SendMessageResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.TurnID == "" {
		t.Fatal("expected turn id")
	}

	w = srv.do(t, http.MethodPost, "/api/messages", `{"content":"again"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while pending, got %d", w.Code)
	}

	w = srv.do(t, http.MethodGet, "/api/transcript", "")
	var snap transcript.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if !snap.Pending || snap.PendingTurnID != res.TurnID || len(snap.Turns) != 2 {
		t.Fatalf("snapshot while pending = %+v", snap)
	}

	close(srv.release)
	deadline := time.Now().Add(5 * time.Second)
	for srv.ctrl.Pending() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	w = srv.do(t, http.MethodGet, "/api/transcript", "")
	snap = transcript.Snapshot{}
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Pending || snap.Turns[1].Text != "Latency is 45ms." {
		t.Fatalf("snapshot after completion = %+v", snap)
	}
}

func TestSendMessage_BadInput(t *testing.T) {
	srv := newTestServer(t)

	if w := srv.do(t, http.MethodPost, "/api/messages", `{"content":"   "}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank content, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodPost, "/api/messages", `not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", w.Code)
	}
	if len(srv.ctrl.Turns()) != 0 {
		t.Fatal("transcript should be unchanged")
	}
}

func TestHandleMetrics(t *testing.T) {
	srv := newTestServer(t)
	srv.sim.Sample()

	w := srv.do(t, http.MethodGet, "/api/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"bandwidth", "latency", "packet_loss", "latency_status", "packet_loss_status"} {
		if _, ok := body[key]; !ok {
			t.Errorf("missing key %q in %v", key, body)
		}
	}
}

func TestOptions(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/options", "")
	var opts ws.Options
	if err := json.NewDecoder(w.Body).Decode(&opts); err != nil {
		t.Fatal(err)
	}
	if len(opts.Languages) != 8 || len(opts.Groups) != 2 || opts.Selection.Explicit {
		t.Fatalf("options = %+v", opts)
	}

	w = srv.do(t, http.MethodPut, "/api/options", `{"language":"German","group":"secondary_emotions","value":"Shame"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	opts = ws.Options{}
	if err := json.NewDecoder(w.Body).Decode(&opts); err != nil {
		t.Fatal(err)
	}
	if opts.Selection.Language != "German" || opts.Selection.Enhancement != "Shame" {
		t.Fatalf("selection = %+v", opts.Selection)
	}

	if w := srv.do(t, http.MethodPut, "/api/options", `{"language":"Latin"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown language, got %d", w.Code)
	}

	w = srv.do(t, http.MethodPut, "/api/options", `{"clear":true}`)
	opts = ws.Options{}
	if err := json.NewDecoder(w.Body).Decode(&opts); err != nil {
		t.Fatal(err)
	}
	if opts.Selection.Explicit {
		t.Fatal("expected selection cleared")
	}
}
