// Package gateway serves the transcript, metrics and enhancement options
// over HTTP and WebSocket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/netwatch/internal/events"
	"github.com/dohr-michael/netwatch/internal/gateway/ws"
	"github.com/dohr-michael/netwatch/internal/netmetrics"
	"github.com/dohr-michael/netwatch/internal/transcript"
)

// Server is the netwatch gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	svc        ws.Services
	listener   net.Listener
}

// NewServer creates a new gateway server.
func NewServer(bus *events.Bus, svc ws.Services, host string, port int) *Server {
	hub := ws.NewHub(bus, svc)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{
		hub: hub,
		bus: bus,
		svc: svc,
	}

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ws", hub.ServeWS)
	r.Get("/api/events", s.handleEvents)

	r.Get("/api/transcript", s.handleTranscript)
	r.Post("/api/messages", s.handleSendMessage)
	r.Get("/api/metrics", s.handleMetrics)

	r.Get("/api/options", s.handleGetOptions)
	r.Put("/api/options", s.handlePutOptions)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Listen binds the listening socket without serving.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	slog.Info("netwatch gateway listening", "addr", s.Addr())
	return s.httpServer.Serve(s.listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int {
	return s.hub.ClientCount()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
		"pending": s.svc.Transcript.Snapshot().Pending,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	// Filter the whole history first so limit counts public events only.
	var history []events.Event
	for _, e := range s.bus.History(math.MaxInt) {
		if ws.Forwarded(e) {
			history = append(history, e)
		}
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}

	type eventJSON struct {
		ID        string             `json:"id"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Payload   map[string]any     `json:"payload"`
	}

	result := make([]eventJSON, 0, len(history))
	for _, e := range history {
		result = append(result, eventJSON{
			ID:        e.ID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Payload:   e.Payload,
		})
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Transcript.Snapshot())
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body ws.SendMessageParams
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	h, err := s.svc.Transcript.Submit(body.Content)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ws.SendMessageResult{TurnID: h.TurnID()})
	case errors.Is(err, transcript.ErrPending):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, transcript.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err)
	case ws.IsClientError(err):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

// metricsResponse adds the derived statuses to a snapshot.
type metricsResponse struct {
	netmetrics.Snapshot
	LatencyStatus    netmetrics.Status `json:"latency_status"`
	PacketLossStatus netmetrics.Status `json:"packet_loss_status"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.Metrics.Current()
	writeJSON(w, http.StatusOK, metricsResponse{
		Snapshot:         snap,
		LatencyStatus:    snap.LatencyStatus(),
		PacketLossStatus: snap.PacketLossStatus(),
	})
}

func (s *Server) handleGetOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ws.OptionsOf(s.svc.Selector))
}

// optionsUpdate is the PUT /api/options body. Clear runs first, then the
// enhancement, then the language.
type optionsUpdate struct {
	Clear    bool   `json:"clear,omitempty"`
	Language string `json:"language,omitempty"`
	Group    string `json:"group,omitempty"`
	Value    string `json:"value,omitempty"`
}

func (s *Server) handlePutOptions(w http.ResponseWriter, r *http.Request) {
	var body optionsUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	sel := s.svc.Selector
	if body.Clear {
		sel.Clear()
	}
	if body.Group != "" || body.Value != "" {
		if err := sel.SelectEnhancement(body.Group, body.Value); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if body.Language != "" {
		if err := sel.SelectLanguage(body.Language); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, ws.OptionsOf(sel))
}
