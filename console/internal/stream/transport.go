package stream

import (
	"context"
	"fmt"
	"net/url"
)

// Conn is one open push connection.
type Conn interface {
	// Next blocks until the next frame arrives or the connection fails.
	Next() ([]byte, error)
	Close() error
}

// Dialer opens push connections. ctx stays live for the whole connection and
// is cancelled when the client stops or abandons the attempt.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// DialerFor selects a transport from the endpoint scheme.
func DialerFor(endpoint string) (Dialer, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("stream: parse endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return WebSocketDialer{}, nil
	case "http", "https":
		return SSEDialer{}, nil
	default:
		return nil, fmt.Errorf("stream: unsupported scheme %q: want ws|wss|http|https", u.Scheme)
	}
}
