package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeTimeout is the deadline for a single write to a subscriber.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the connection
	// as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-subscriber outgoing message buffer depth.
	sendBufSize = 64

	// DefaultKeepalive is the SSE comment interval used when none is set.
	DefaultKeepalive = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Any origin; CORS belongs to the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Options configures a Hub.
type Options struct {
	// Keepalive is the interval between SSE keepalive comments.
	Keepalive time.Duration

	// Initial, when set, returns a message sent to each subscriber right
	// after it connects. A nil return sends nothing.
	Initial func() []byte

	// OnCount is called with the subscriber count after every change.
	OnCount func(int)
}

// Hub manages push subscribers and broadcasts published messages to all of
// them.
type Hub struct {
	opts Options

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// client is one subscriber, WebSocket or SSE.
type client struct {
	send chan []byte
}

// New creates a Hub.
func New(opts Options) *Hub {
	if opts.Keepalive <= 0 {
		opts.Keepalive = DefaultKeepalive
	}
	return &Hub{opts: opts, clients: make(map[*client]struct{})}
}

// Run blocks until ctx is cancelled, then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Publish sends msg to every subscriber.
func (h *Hub) Publish(msg []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- msg:
		default:
			slog.Warn("hub: subscriber buffer full, disconnecting")
			h.unregister(c)
		}
	}
}

// PublishJSON marshals v and publishes it.
func (h *Hub) PublishJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("hub: marshal: %w", err)
	}
	h.Publish(b)
	return nil
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to WebSocket and streams messages until the
// connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c, ok := h.register()
	if !ok {
		conn.Close()
		return
	}
	defer h.unregister(c)

	go writePump(conn, c.send)
	readPump(conn) // blocks until connection closes
}

// ServeSSE streams messages as Server-Sent Events until the client goes away.
// A keepalive comment is written every Keepalive interval.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	c, ok := h.register()
	if !ok {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.unregister(c)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.opts.Keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if _, err := w.Write(sseEvent(msg)); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// sseEvent frames msg as one event; embedded newlines become extra data lines.
func sseEvent(msg []byte) []byte {
	var b bytes.Buffer
	for _, line := range bytes.Split(msg, []byte("\n")) {
		b.WriteString("data: ")
		b.Write(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register() (*client, bool) {
	c := &client{send: make(chan []byte, sendBufSize)}
	if h.opts.Initial != nil {
		if msg := h.opts.Initial(); msg != nil {
			c.send <- msg
		}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.counted(n)
	return c, true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.counted(n)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	h.counted(0)
}

func (h *Hub) counted(n int) {
	if h.opts.OnCount != nil {
		h.opts.OnCount(n)
	}
}

// writePump forwards queued messages to the connection and sends periodic
// pings. Runs in its own goroutine per subscriber.
func writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump processes control frames and detects disconnects. Blocks until
// the connection closes.
func readPump(conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
