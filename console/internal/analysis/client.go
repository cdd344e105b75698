package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wamstack/wamstack/console/internal/engine"
	"github.com/wamstack/wamstack/console/internal/normalize"
	"github.com/wamstack/wamstack/pkg/types"
)

const (
	defaultTimeout = 60 * time.Second
	maxBody        = 8 << 20

	// fallbackPrompt is sent instead of rows when the series is empty.
	fallbackPrompt = "Summarize recent readings and suggest treatments."
)

// ErrBusy is returned by Analyze while another request is in flight.
var ErrBusy = errors.New("analysis: request already in flight")

// Error is a failed analysis reply. Message is what the server said.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("analysis: status %d: %s", e.Status, e.Message)
}

// Result is a successful analysis reply.
type Result struct {
	Text  string
	Chart *engine.Chart // nil when the reply carried no usable chart
}

// Client posts analysis requests to the server.
type Client struct {
	url  string
	http *http.Client
	busy atomic.Bool
}

// New returns a Client for the server at base. A nil hc gets a client with a
// 60s timeout.
func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{url: strings.TrimRight(base, "/") + "/api/v1/analyze", http: hc}
}

// Busy reports whether a request is in flight.
func (c *Client) Busy() bool { return c.busy.Load() }

type request struct {
	Rows   []types.Reading `json:"rows,omitempty"`
	Inputs string          `json:"inputs,omitempty"`
}

// Analyze sends rows and parses the reply. It returns ErrBusy without sending
// anything while a previous call is still running.
func (c *Client) Analyze(ctx context.Context, rows []types.Reading) (Result, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer c.busy.Store(false)

	payload := request{Rows: rows}
	if len(rows) == 0 {
		payload = request{Inputs: fallbackPrompt}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("analysis: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("analysis: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Info("analysis: sending request", "rows", len(rows))
	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("analysis: post: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Result{}, fmt.Errorf("analysis: read reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &Error{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, raw)}
	}
	return parseReply(raw), nil
}

// reply is the JSON shape of a successful response. Every field is optional.
type reply struct {
	GeneratedText      string      `json:"generated_text"`
	GeneratedTextCamel string      `json:"generatedText"`
	Text               string      `json:"text"`
	Charts             []chartSpec `json:"charts"`
}

type chartSpec struct {
	ID       string            `json:"id"`
	Labels   json.RawMessage   `json:"labels"`
	Datasets []json.RawMessage `json:"datasets"`
}

// parseReply extracts the advisory text and main chart. A body that is not a
// JSON object is used verbatim as the text.
func parseReply(raw []byte) Result {
	var r reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return Result{Text: string(raw)}
	}

	text := firstNonEmpty(r.GeneratedText, r.GeneratedTextCamel, r.Text)
	if text == "" {
		var buf bytes.Buffer
		if json.Indent(&buf, raw, "", "  ") == nil {
			text = buf.String()
		} else {
			text = string(raw)
		}
	}
	return Result{Text: text, Chart: mainChart(r.Charts)}
}

// mainChart picks the chart with id "main", else the first one.
func mainChart(specs []chartSpec) *engine.Chart {
	if len(specs) == 0 {
		return nil
	}
	spec := specs[0]
	for _, s := range specs {
		if s.ID == "main" {
			spec = s
			break
		}
	}

	c := &engine.Chart{}
	var labels []any
	if json.Unmarshal(spec.Labels, &labels) == nil && labels != nil {
		c.Labels = make([]string, len(labels))
		for i, l := range labels {
			c.Labels[i] = labelString(l)
		}
	}
	for k := 0; k < len(types.Fields) && k < len(spec.Datasets); k++ {
		var ds struct {
			Data []any `json:"data"`
		}
		if json.Unmarshal(spec.Datasets[k], &ds) != nil || ds.Data == nil {
			c.Datasets = append(c.Datasets, nil)
			continue
		}
		vals := make([]*float64, len(ds.Data))
		for i, v := range ds.Data {
			vals[i] = normalize.Number(v)
		}
		c.Datasets = append(c.Datasets, vals)
	}
	return c
}

func labelString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%.0f", x)
	default:
		return ""
	}
}

// errorMessage prefers the reply's "error" or "detail" field, then the raw
// body, then the status text.
func errorMessage(status int, raw []byte) string {
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if m := firstNonEmpty(body.Error, body.Detail); m != "" {
			return m
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return fmt.Sprintf("HTTP %d", status)
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
