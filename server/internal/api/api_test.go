package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"

	"github.com/wamstack/wamstack/pkg/hub"
	"github.com/wamstack/wamstack/pkg/types"
	"github.com/wamstack/wamstack/server/internal/alerts"
	"github.com/wamstack/wamstack/server/internal/api"
	"github.com/wamstack/wamstack/server/internal/config"
	"github.com/wamstack/wamstack/server/internal/receiver"
	"github.com/wamstack/wamstack/server/internal/store"
)

// --- test helpers -----------------------------------------------------------

type fixture struct {
	handler http.Handler
	store   *store.Memory
	hub     *hub.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory(1000)
	al := alerts.New(config.AlertsConfig{})
	hb := hub.New(hub.Options{Keepalive: time.Hour})
	rc := receiver.New(st, al, hb, types.DefaultThresholds())
	h := api.New(api.Options{Receiver: rc, Store: st, Alerts: al, Hub: hb, Backend: "memory"})
	return &fixture{handler: h, store: st, hub: hb}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(method, path, rd))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

func wantStatus(t *testing.T, rr *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rr.Code != code {
		t.Fatalf("status: got %d, want %d (body: %s)", rr.Code, code, rr.Body.String())
	}
}

// --- /health ----------------------------------------------------------------

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/health", "")
	wantStatus(t, rr, http.StatusOK)

	var resp map[string]any
	decode(t, rr, &resp)
	if resp["status"] != "ok" || resp["backend"] != "memory" || resp["subscribers"] != float64(0) {
		t.Errorf("health: got %v", resp)
	}
}

// --- /api/v1/sensor + /api/v1/readings --------------------------------------

func TestSensor_ThenReadingsNewestFirst(t *testing.T) {
	f := newFixture(t)
	for i, body := range []string{
		`{"ts":"2024-05-01T10:00:00Z","ph":7.1,"site":"a"}`,
		`{"ts":"2024-05-01T10:01:00Z","ph":"7.2","site":"a"}`,
		`{"ph":7.3,"tds":"n/a"}`,
	} {
		rr := f.do(t, http.MethodPost, "/api/v1/sensor", body)
		wantStatus(t, rr, http.StatusOK)
		var resp struct {
			OK bool   `json:"ok"`
			ID uint64 `json:"id"`
		}
		decode(t, rr, &resp)
		if !resp.OK || resp.ID != uint64(i+1) {
			t.Errorf("sensor %d: got %+v", i, resp)
		}
	}

	rr := f.do(t, http.MethodGet, "/api/v1/readings", "")
	wantStatus(t, rr, http.StatusOK)
	var recs []store.Record
	decode(t, rr, &recs)
	if len(recs) != 3 {
		t.Fatalf("readings: got %d, want 3", len(recs))
	}
	if recs[0].ID != 3 || recs[2].ID != 1 {
		t.Errorf("order: got ids %d..%d, want 3..1", recs[0].ID, recs[2].ID)
	}
	if recs[0].TS == "" || recs[0].TDS != nil {
		t.Errorf("newest: got %+v, want defaulted ts and null tds", recs[0])
	}
	if *recs[1].PH != 7.2 {
		t.Errorf("string ph not coerced: got %v", *recs[1].PH)
	}

	rr = f.do(t, http.MethodGet, "/api/v1/readings?limit=1", "")
	decode(t, rr, &recs)
	if len(recs) != 1 || recs[0].ID != 3 {
		t.Errorf("limit=1: got %+v", recs)
	}
}

func TestSensor_BadRequests(t *testing.T) {
	f := newFixture(t)
	wantStatus(t, f.do(t, http.MethodPost, "/api/v1/sensor", `{bad`), http.StatusBadRequest)
	wantStatus(t, f.do(t, http.MethodPost, "/api/v1/sensor", `{}`), http.StatusBadRequest)
	wantStatus(t, f.do(t, http.MethodPost, "/api/v1/sensor", `[1,2]`), http.StatusBadRequest)
	wantStatus(t, f.do(t, http.MethodGet, "/api/v1/sensor", ""), http.StatusMethodNotAllowed)
	wantStatus(t, f.do(t, http.MethodGet, "/api/v1/nope", ""), http.StatusNotFound)
}

func TestReadings_BadLimit(t *testing.T) {
	f := newFixture(t)
	wantStatus(t, f.do(t, http.MethodGet, "/api/v1/readings?limit=abc", ""), http.StatusBadRequest)
	wantStatus(t, f.do(t, http.MethodGet, "/api/v1/readings?limit=-1", ""), http.StatusBadRequest)
}

func TestReadings_Gzip(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 50; i++ {
		f.do(t, http.MethodPost, "/api/v1/sensor", fmt.Sprintf(`{"ph":7,"tds":%d,"site":"site-%d"}`, 300+i, i))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/readings", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	wantStatus(t, rr, http.StatusOK)

	if got := rr.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding: got %q, want gzip", got)
	}
	zr, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	var recs []store.Record
	if err := json.NewDecoder(zr).Decode(&recs); err != nil {
		t.Fatalf("decode gzipped body: %v", err)
	}
	if len(recs) != 50 {
		t.Errorf("readings: got %d, want 50", len(recs))
	}
}

// --- /api/v1/thresholds -----------------------------------------------------

func TestThresholds_GetAndMerge(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/api/v1/thresholds", "")
	wantStatus(t, rr, http.StatusOK)
	var th types.Thresholds
	decode(t, rr, &th)
	if th != types.DefaultThresholds() {
		t.Errorf("initial: got %+v, want defaults", th)
	}

	rr = f.do(t, http.MethodPost, "/api/v1/thresholds", `{"tds_max":800,"ph_min":6.0}`)
	wantStatus(t, rr, http.StatusOK)
	var resp struct {
		OK         bool             `json:"ok"`
		Thresholds types.Thresholds `json:"thresholds"`
	}
	decode(t, rr, &resp)
	want := types.DefaultThresholds()
	want.TDSMax, want.PHLow = 800, 6
	if !resp.OK || resp.Thresholds != want {
		t.Errorf("merge: got %+v, want %+v", resp.Thresholds, want)
	}

	// New bounds apply to the next reading.
	f.do(t, http.MethodPost, "/api/v1/sensor", `{"tds":700}`)
	rr = f.do(t, http.MethodGet, "/api/v1/alerts", "")
	var list []types.AlertPayload
	decode(t, rr, &list)
	if len(list) != 0 {
		t.Errorf("alerts after raising tds_max: got %+v, want none", list)
	}
}

func TestThresholds_Invalid(t *testing.T) {
	f := newFixture(t)
	wantStatus(t, f.do(t, http.MethodPost, "/api/v1/thresholds", `{"ph_min":9,"ph_max":7}`), http.StatusUnprocessableEntity)
	wantStatus(t, f.do(t, http.MethodPut, "/api/v1/thresholds", `not json`), http.StatusBadRequest)

	var th types.Thresholds
	decode(t, f.do(t, http.MethodGet, "/api/v1/thresholds", ""), &th)
	if th != types.DefaultThresholds() {
		t.Errorf("thresholds changed after rejected update: %+v", th)
	}
}

// --- /api/v1/alerts ---------------------------------------------------------

func TestAlerts_FromBreachingReadings(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/sensor", `{"ph":5.9}`)
	f.do(t, http.MethodPost, "/api/v1/sensor", `{"ph":7}`)
	f.do(t, http.MethodPost, "/api/v1/sensor", `{"tds":900,"iron":0.5}`)

	rr := f.do(t, http.MethodGet, "/api/v1/alerts", "")
	wantStatus(t, rr, http.StatusOK)
	var list []types.AlertPayload
	decode(t, rr, &list)
	if len(list) != 2 {
		t.Fatalf("alerts: got %d, want 2", len(list))
	}
	if list[0].ReadingID != 3 || list[0].Message != "TDS high (900 > 500); Iron high (0.5 > 0.3)" {
		t.Errorf("newest alert: got %+v", list[0])
	}
	if list[1].ReadingID != 1 || list[1].Message != "pH low (5.9 < 6.5)" {
		t.Errorf("oldest alert: got %+v", list[1])
	}

	decode(t, f.do(t, http.MethodGet, "/api/v1/alerts?limit=1", ""), &list)
	if len(list) != 1 {
		t.Errorf("limit=1: got %d", len(list))
	}
}

// --- /api/v1/analyze --------------------------------------------------------

func TestAnalyze_Rows(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/api/v1/analyze",
		`{"rows":[{"ts":"2024-05-01T10:00:00Z","ph":9.1,"site":"a"},{"ts":"2024-05-01T10:01:00Z","ph":7.0,"site":"a"}]}`)
	wantStatus(t, rr, http.StatusOK)

	var resp struct {
		Type          string `json:"type"`
		GeneratedText string `json:"generated_text"`
		Charts        []struct {
			ID       string            `json:"id"`
			Labels   []string          `json:"labels"`
			Datasets []json.RawMessage `json:"datasets"`
		} `json:"charts"`
	}
	decode(t, rr, &resp)
	if resp.Type != "local" || !strings.Contains(resp.GeneratedText, "pH high (9.1 > 8.5)") {
		t.Errorf("analysis: got type=%q text=%q", resp.Type, resp.GeneratedText)
	}
	if len(resp.Charts) != 1 || resp.Charts[0].ID != "main" || len(resp.Charts[0].Labels) != 2 || len(resp.Charts[0].Datasets) != 4 {
		t.Errorf("charts: got %+v", resp.Charts)
	}
}

func TestAnalyze_NoRows(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/api/v1/analyze", `{"inputs":"Summarize recent readings"}`)
	wantStatus(t, rr, http.StatusBadRequest)
	var resp map[string]string
	decode(t, rr, &resp)
	if !strings.Contains(resp["error"], "no rows") {
		t.Errorf("error: got %q", resp["error"])
	}
}

// --- /stream ----------------------------------------------------------------

func TestStream_SSEReceivesReadingAndAlert(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type: got %q", ct)
	}

	post, err := http.Post(srv.URL+"/api/v1/sensor", "application/json", strings.NewReader(`{"ph":9.5,"site":"a"}`))
	if err != nil {
		t.Fatalf("POST sensor: %v", err)
	}
	post.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	var kinds []string
	for len(kinds) < 2 && sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var env types.Envelope
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &env); err != nil {
			t.Fatalf("event: %v (%q)", err, line)
		}
		kinds = append(kinds, env.Type)
	}
	if len(kinds) != 2 || kinds[0] != types.KindReading || kinds[1] != types.KindAlert {
		t.Errorf("events: got %v, want [reading alert]", kinds)
	}
}

// --- /metrics ---------------------------------------------------------------

func TestMetrics_Exposition(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/sensor", `{"ph":9.9}`)
	f.do(t, http.MethodGet, "/api/v1/readings", "")

	rr := f.do(t, http.MethodGet, "/metrics", "")
	wantStatus(t, rr, http.StatusOK)

	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(rr.Body)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}
	for _, name := range []string{
		"wam_server_readings_received_total",
		"wam_server_alerts_fired_total",
		"wam_server_stream_subscribers",
	} {
		if _, ok := families[name]; !ok {
			t.Errorf("missing metric family %s", name)
		}
	}
	if v := counterValue(families["wam_server_readings_received_total"]); v < 1 {
		t.Errorf("readings received: got %v, want >= 1", v)
	}

	dur, ok := families["wam_server_http_request_duration_seconds"]
	if !ok {
		t.Fatal("missing request duration family")
	}
	if !hasLabel(dur, "route", "/api/v1/readings") {
		t.Error("request duration not labelled by route template")
	}
}

func counterValue(mf *dto.MetricFamily) float64 {
	if mf == nil || len(mf.GetMetric()) == 0 {
		return 0
	}
	return mf.GetMetric()[0].GetCounter().GetValue()
}

func hasLabel(mf *dto.MetricFamily, name, value string) bool {
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == name && l.GetValue() == value {
				return true
			}
		}
	}
	return false
}
