// Package snapshot fetches the server's most recent readings and its current
// thresholds. A failed fetch is reported once and never retried here; the
// caller decides whether to try again.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wamstack/wamstack/pkg/types"
)

const defaultTimeout = 10 * time.Second

// maxBody bounds a response body read.
const maxBody = 32 << 20

var (
	// ErrUnreachable means the request never got an HTTP response.
	ErrUnreachable = errors.New("snapshot: server unreachable")

	// ErrStatus means the server answered with a non-2xx status.
	ErrStatus = errors.New("snapshot: unexpected status")
)

// Client talks to the server REST API.
type Client struct {
	base string
	http *http.Client
}

// New returns a Client for the server at base (e.g. "http://localhost:8080").
// A nil hc gets a client with a 10s timeout.
func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

// Readings returns up to limit of the most recent raw records, as served.
func (c *Client) Readings(ctx context.Context, limit int) ([]map[string]any, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []map[string]any
	if err := c.get(ctx, "/api/v1/readings?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("snapshot: readings: %w", err)
	}
	return out, nil
}

// Thresholds returns the server-side thresholds. Bounds missing from the
// response keep their defaults.
func (c *Client) Thresholds(ctx context.Context) (types.Thresholds, error) {
	th := types.DefaultThresholds()
	if err := c.get(ctx, "/api/v1/thresholds", &th); err != nil {
		return types.Thresholds{}, fmt.Errorf("snapshot: thresholds: %w", err)
	}
	if err := th.Validate(); err != nil {
		return types.Thresholds{}, fmt.Errorf("snapshot: thresholds: %w", err)
	}
	return th, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody)) //nolint:errcheck
		return fmt.Errorf("%w %d from %s", ErrStatus, resp.StatusCode, path)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
