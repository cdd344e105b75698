package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// readWait is how long a connection may stay silent (no frame and no
	// ping) before it is treated as dead. The server pings every 54s.
	readWait = 90 * time.Second

	writeWait = 10 * time.Second

	maxFrameSize = 1 << 20
)

// WebSocketDialer connects with gorilla/websocket.
type WebSocketDialer struct {
	// Dialer overrides websocket.DefaultDialer when non-nil.
	Dialer *websocket.Dialer
}

func (d WebSocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	c, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("stream: websocket dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("stream: websocket dial: %w", err)
	}

	c.SetReadLimit(maxFrameSize)
	c.SetReadDeadline(time.Now().Add(readWait)) //nolint:errcheck
	c.SetPingHandler(func(data string) error {
		c.SetReadDeadline(time.Now().Add(readWait)) //nolint:errcheck
		return c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	return &wsConn{conn: c}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Next() ([]byte, error) {
	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		c.conn.SetReadDeadline(time.Now().Add(readWait)) //nolint:errcheck
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return msg, nil
		}
	}
}

func (c *wsConn) Close() error {
	c.conn.WriteControl(websocket.CloseMessage, //nolint:errcheck
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return c.conn.Close()
}
