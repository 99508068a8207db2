package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/dohr-michael/netwatch/internal/events"
)

// sendBuffer is the number of frames queued per client before it is
// considered too slow and disconnected.
const sendBuffer = 256

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// drop closes the connection of a client that fell behind. Skipping frames
// would corrupt the streamed assistant text it is rebuilding.
func (c *client) drop() {
	c.once.Do(func() {
		go c.conn.Close(websocket.StatusPolicyViolation, "client too slow")
	})
}

// Hub fans bus events out to WebSocket clients and answers their requests.
type Hub struct {
	svc Services

	mu          sync.RWMutex
	clients     map[*client]struct{}
	unsubscribe func()
}

// NewHub creates a hub forwarding every public bus event.
func NewHub(bus *events.Bus, svc Services) *Hub {
	h := &Hub{svc: svc, clients: make(map[*client]struct{})}
	h.unsubscribe = bus.Subscribe(h.forward)
	return h
}

func (h *Hub) forward(e events.Event) {
	if !Forwarded(e) {
		return
	}
	frame, err := NewEventFrame(string(e.Type), e)
	if err != nil {
		slog.Error("ws event frame", "type", e.Type, "error", err)
		return
	}
	data, err := MarshalFrame(frame)
	if err != nil {
		slog.Error("ws marshal frame", "type", e.Type, "error", err)
		return
	}
	h.broadcast(data)
}

// Forwarded reports whether clients receive e. Internal events and hidden
// turns stay on the server.
func Forwarded(e events.Event) bool {
	if e.Type.Internal() {
		return false
	}
	if e.Type == events.EventTurnAppended {
		p, ok := events.GetTurnAppendedPayload(e)
		return !ok || !p.Hidden
	}
	return true
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.Warn("ws client too slow, disconnecting")
			c.drop()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	slog.Info("ws client connected", "clients", n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		slog.Info("ws client disconnected", "clients", n)
	}
}

// ServeWS upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // the gateway binds to loopback by default
	})
	if err != nil {
		slog.Error("ws accept", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(c)
	defer h.remove(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.writeLoop(ctx, c)
	h.readLoop(ctx, c)
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				slog.Debug("ws closed", "status", status)
			} else {
				slog.Debug("ws read", "error", err)
			}
			return
		}

		req, err := UnmarshalFrame(data)
		if err != nil {
			slog.Warn("ws bad frame", "error", err)
			continue
		}
		if req.Type != FrameTypeRequest {
			slog.Debug("ws ignored frame", "type", req.Type)
			continue
		}

		resp, err := Dispatch(h.svc, req)
		if err != nil {
			slog.Error("ws build response", "method", req.Method, "error", err)
			continue
		}
		data, err = MarshalFrame(resp)
		if err != nil {
			slog.Error("ws marshal response", "method", req.Method, "error", err)
			continue
		}
		select {
		case c.send <- data:
		default:
			c.drop()
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.send:
			if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}

// Close detaches the hub from the bus and closes every client.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutdown")
		delete(h.clients, c)
	}
}
