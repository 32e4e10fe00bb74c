// Package hub synchronizes the game screens over WebSocket. Every connected
// client joins the single karaoke room; control events from one screen are
// relayed to all the others so the host view, the singer view and the jury
// view stay in step.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	// Slow clients are dropped once their outbound queue is full.
	sendQueueSize = 32

	writeTimeout = 10 * time.Second
)

// relayEvents maps an inbound control event to the event name broadcast to
// the other screens. Events missing from this table are ignored.
var relayEvents = map[string]string{
	"show-intro":               "to-intro",
	"show-categories":          "to-categories",
	"show-song-list":           "to-song-list",
	"goto-song":                "to-song",
	"play-song":                "play",
	"propose-lyrics":           "show-suggested-lyrics",
	"validate-lyrics":          "validate-lyrics",
	"freeze-lyrics":            "freeze-lyrics",
	"reveal-lyrics":            "reveal-lyrics",
	"continue-lyrics":          "continue-lyrics",
	"lyrics-validation-result": "lyrics-validation-result",
	"lyrics-words-count":       "lyrics-words-count",
	"update-lyrics-to-guess":   "lyrics-to-guess-updated",
	"set-perf-mode":            "set-perf-mode",
	"lyrics-data":              "lyrics-data",
	"lyrics-loading":           "lyrics-loading",
	"lyrics-error":             "lyrics-error",
}

// Message is the wire envelope. Data is optional; bare control events carry
// none.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub accepts screen connections and fans control events out to every
// client except the sender.
type Hub struct {
	log Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func New(log Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// ClientCount reports how many screens are connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client. New connections are rejected afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warnf("WebSocket accept failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendQueueSize)}
	if !h.register(c) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	h.log.Infof("Screen connected (%d total)", h.ClientCount())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, c)
	h.readLoop(ctx, c)

	h.unregister(c)
	conn.Close(websocket.StatusNormalClosure, "")
	h.log.Infof("Screen disconnected (%d total)", h.ClientCount())
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		kind, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if kind != websocket.MessageText {
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Warnf("Dropping malformed event: %v", err)
			continue
		}

		outbound, ok := relayEvents[msg.Event]
		if !ok {
			h.log.Debugf("Ignoring unknown event %q", msg.Event)
			continue
		}

		payload, err := json.Marshal(Message{Event: outbound, Data: msg.Data})
		if err != nil {
			h.log.Errorf("Failed to encode %q event: %v", outbound, err)
			continue
		}
		h.broadcast(payload, c)
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	for data := range c.send {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := c.conn.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			return
		}
	}
}

// broadcast queues data for every client but the sender. A client whose
// queue is full is dropped rather than allowed to stall the room.
func (h *Hub) broadcast(data []byte, sender *client) {
	h.mu.Lock()
	var stalled []*client
	for c := range h.clients {
		if c == sender {
			continue
		}
		select {
		case c.send <- data:
		default:
			stalled = append(stalled, c)
		}
	}
	for _, c := range stalled {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	for _, c := range stalled {
		h.log.Warnf("Dropping stalled screen")
		c.conn.Close(websocket.StatusPolicyViolation, "send queue overflow")
	}
}
