package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/wamstack/wamstack/console/internal/metrics"
)

// State is the connection state.
type State int

const (
	Closed State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Connecting:
		return "CONNECTING"
	case Open:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// Handler receives decoded stream messages and state changes. Calls are made
// from the client's connection goroutine, in arrival order.
type Handler interface {
	HandleReading(rec map[string]any)
	HandleAlert(text string)
	HandleThresholds(raw json.RawMessage)

	// HandleState reports a transition. err is the transport failure that
	// caused a transition to Closed, and nil for every other transition.
	HandleState(s State, err error)
}

// stopper is the part of *time.Timer the client needs.
type stopper interface {
	Stop() bool
}

// Client maintains at most one live push connection.
type Client struct {
	endpoint string
	dialer   Dialer
	handler  Handler

	mu           sync.Mutex
	state        State
	conn         Conn
	cancel       context.CancelFunc
	closedByUser bool
	attempt      uint64 // identifies the current connection attempt
	retry        stopper
	retryID      uint64 // identifies the pending reconnect
	bo           *backoff

	// afterFunc schedules reconnects. Injectable for deterministic tests.
	afterFunc func(d time.Duration, f func()) stopper
}

// New creates a Client for endpoint. It does not connect until Start.
func New(endpoint string, dialer Dialer, h Handler) *Client {
	return &Client{
		endpoint: endpoint,
		dialer:   dialer,
		handler:  h,
		bo:       newBackoff(),
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RetryDelay returns the delay the next reconnect will wait.
func (c *Client) RetryDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bo.peek()
}

// Start opens the connection. It clears a previous Stop and is a no-op while
// a connection exists, a dial is in flight, or a reconnect is pending.
func (c *Client) Start() {
	c.mu.Lock()
	c.closedByUser = false
	if c.state != Closed || c.retry != nil {
		c.mu.Unlock()
		return
	}
	c.connectLocked()
	c.mu.Unlock()

	c.notify(Connecting, nil)
}

// Stop closes the active connection and suppresses every future reconnect
// until Start is called again.
func (c *Client) Stop() {
	c.mu.Lock()
	c.closedByUser = true
	c.attempt++ // orphan any in-flight dial or read loop
	c.retryID++
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	conn := c.conn
	c.conn = nil
	wasClosed := c.state == Closed
	c.state = Closed
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if !wasClosed {
		slog.Info("stream: stopped by user", "endpoint", c.endpoint)
		c.notify(Closed, nil)
	}
}

// connectLocked starts a new connection attempt. c.mu must be held.
func (c *Client) connectLocked() {
	c.attempt++
	id := c.attempt
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = Connecting
	go c.run(ctx, id)
}

// run dials, then reads frames until the connection fails or is orphaned.
func (c *Client) run(ctx context.Context, id uint64) {
	conn, err := c.dialer.Dial(ctx, c.endpoint)
	if err != nil {
		c.fail(id, nil, err)
		return
	}

	c.mu.Lock()
	if id != c.attempt || c.closedByUser {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.state = Open
	c.bo.reset()
	c.mu.Unlock()

	slog.Info("stream: connected", "endpoint", c.endpoint)
	c.notify(Open, nil)

	for {
		msg, err := conn.Next()
		if err != nil {
			c.fail(id, conn, err)
			return
		}
		c.dispatch(msg)
	}
}

// fail tears down attempt id and schedules one reconnect unless the user
// stopped the client or another reconnect is already pending.
func (c *Client) fail(id uint64, conn Conn, err error) {
	c.mu.Lock()
	if id != c.attempt {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	} else if conn != nil {
		conn.Close()
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = Closed

	var wait time.Duration
	scheduled := false
	if !c.closedByUser && c.retry == nil {
		wait = c.bo.next()
		c.retryID++
		rid := c.retryID
		c.retry = c.afterFunc(wait, func() { c.reconnect(rid) })
		scheduled = true
	}
	c.mu.Unlock()

	if scheduled {
		metrics.StreamReconnects.Inc()
		slog.Warn("stream: connection failed, will reconnect",
			"endpoint", c.endpoint, "err", err, "retry_in", wait)
	} else {
		slog.Warn("stream: connection failed", "endpoint", c.endpoint, "err", err)
	}
	c.notify(Closed, err)
}

// reconnect fires a scheduled retry. It observes Stop and aborts if the
// retry was cancelled or superseded.
func (c *Client) reconnect(rid uint64) {
	c.mu.Lock()
	if rid != c.retryID {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	if c.closedByUser || c.state != Closed {
		c.mu.Unlock()
		return
	}
	c.connectLocked()
	c.mu.Unlock()

	c.notify(Connecting, nil)
}

// dispatch decodes one frame and routes it. Malformed frames and handler
// panics are logged and dropped; the read loop always continues.
func (c *Client) dispatch(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordsDropped.WithLabelValues("handler_panic").Inc()
			slog.Error("stream: handler panicked, message dropped", "panic", r)
		}
	}()

	m, err := Decode(frame)
	if err != nil {
		metrics.RecordsDropped.WithLabelValues("malformed_message").Inc()
		slog.Warn("stream: dropping message", "err", err)
		return
	}

	switch m := m.(type) {
	case Reading:
		c.handler.HandleReading(m.Record)
	case Alert:
		c.handler.HandleAlert(m.Text)
	case Thresholds:
		c.handler.HandleThresholds(m.Raw)
	default:
		slog.Warn("stream: unhandled message kind", "kind", m.kind())
	}
}

func (c *Client) notify(s State, err error) {
	metrics.StreamState.Set(float64(s))
	c.handler.HandleState(s, err)
}
