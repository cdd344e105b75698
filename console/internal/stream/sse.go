package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SSEDialer opens a Server-Sent Events stream with a plain HTTP GET.
type SSEDialer struct {
	// Client overrides http.DefaultClient when non-nil. It must not set a
	// Timeout, which would cut the long-lived body.
	Client *http.Client
}

func (d SSEDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("stream: sse: build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream: sse: http get: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream: sse: unexpected status %d", resp.StatusCode)
	}
	return &sseConn{body: resp.Body, r: bufio.NewReader(resp.Body)}, nil
}

type sseConn struct {
	body io.ReadCloser
	r    *bufio.Reader
}

// Next returns the data of the next event. Multi-line data fields are joined
// with "\n"; comments (keepalives) and other fields are skipped.
func (c *sseConn) Next() ([]byte, error) {
	var data []string
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if len(data) > 0 {
				return []byte(strings.Join(data, "\n")), nil
			}
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
}

func (c *sseConn) Close() error {
	return c.body.Close()
}
