package alerts

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wamstack/wamstack/pkg/types"
	"github.com/wamstack/wamstack/server/internal/config"
	"github.com/wamstack/wamstack/server/internal/metrics"
	"github.com/wamstack/wamstack/server/internal/store"
)

func newTestEngine(cfg config.AlertsConfig) *Engine {
	e := New(cfg)
	n := 0
	e.newID = func() string {
		n++
		return fmt.Sprintf("a-%d", n)
	}
	e.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return e
}

func TestReasons(t *testing.T) {
	th := types.DefaultThresholds()
	cases := []struct {
		name string
		rec  store.Record
		want []string
	}{
		{"clean", store.Record{PH: types.Float(7.2), TDS: types.Float(300)}, nil},
		{"ph low", store.Record{PH: types.Float(6.1)}, []string{"pH low (6.1 < 6.5)"}},
		{"ph high", store.Record{PH: types.Float(9.2)}, []string{"pH high (9.2 > 8.5)"}},
		{"at bounds", store.Record{PH: types.Float(8.5), TDS: types.Float(500), Turb: types.Float(5), Iron: types.Float(0.3)}, nil},
		{
			"several",
			store.Record{PH: types.Float(6.1), TDS: types.Float(612.5), Turb: types.Float(7), Iron: types.Float(0.45)},
			[]string{"pH low (6.1 < 6.5)", "TDS high (612.5 > 500)", "Turbidity high (7 > 5)", "Iron high (0.45 > 0.3)"},
		},
		{"absent", store.Record{}, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Reasons(th, c.rec)
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("Reasons: got %q, want %q", got, c.want)
			}
		})
	}
}

func TestEvaluate_CreatesAlert(t *testing.T) {
	e := newTestEngine(config.AlertsConfig{})
	before := testutil.ToFloat64(metrics.AlertsFired)

	rec := store.Record{ID: 42, PH: types.Float(9.2), TDS: types.Float(612)}
	a, ok := e.Evaluate(types.DefaultThresholds(), rec)
	if !ok {
		t.Fatal("Evaluate: expected an alert")
	}
	if a.ID != "a-1" || a.ReadingID != 42 || a.TS != "2024-05-01T09:00:00Z" {
		t.Errorf("alert: got %+v", a)
	}
	if a.Message != "pH high (9.2 > 8.5); TDS high (612 > 500)" {
		t.Errorf("message: got %q", a.Message)
	}
	if got := testutil.ToFloat64(metrics.AlertsFired) - before; got != 1 {
		t.Errorf("alerts fired delta: got %v, want 1", got)
	}
}

func TestEvaluate_NoBreach(t *testing.T) {
	e := newTestEngine(config.AlertsConfig{})
	if _, ok := e.Evaluate(types.DefaultThresholds(), store.Record{PH: types.Float(7)}); ok {
		t.Fatal("Evaluate: unexpected alert for a clean reading")
	}
	if n := len(e.Recent(10)); n != 0 {
		t.Errorf("history: got %d, want 0", n)
	}
}

func TestRecent_NewestFirstAndBounded(t *testing.T) {
	e := newTestEngine(config.AlertsConfig{History: 3})
	for i := 1; i <= 5; i++ {
		e.Evaluate(types.DefaultThresholds(), store.Record{ID: uint64(i), PH: types.Float(5)})
	}

	got := e.Recent(10)
	if len(got) != 3 {
		t.Fatalf("Recent: got %d, want history limit 3", len(got))
	}
	for i, want := range []uint64{5, 4, 3} {
		if got[i].ReadingID != want {
			t.Errorf("Recent[%d].reading_id: got %d, want %d", i, got[i].ReadingID, want)
		}
	}
	if n := len(e.Recent(1)); n != 1 {
		t.Errorf("Recent(1): got %d", n)
	}
}

// hookServer records request bodies posted to it.
type hookServer struct {
	*httptest.Server
	mu     sync.Mutex
	bodies []map[string]any
}

func newHookServer(t *testing.T, status int) *hookServer {
	t.Helper()
	h := &hookServer{}
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		json.Unmarshal(raw, &body) //nolint:errcheck
		h.mu.Lock()
		h.bodies = append(h.bodies, body)
		h.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(h.Close)
	return h
}

func (h *hookServer) received() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]map[string]any(nil), h.bodies...)
}

func TestDeliver_AllTargetTypes(t *testing.T) {
	slack := newHookServer(t, http.StatusOK)
	teams := newHookServer(t, http.StatusOK)
	generic := newHookServer(t, http.StatusOK)
	t.Setenv("TEST_WAM_SLACK", slack.URL)
	t.Setenv("TEST_WAM_TEAMS", teams.URL)
	t.Setenv("TEST_WAM_HTTP", generic.URL)

	e := newTestEngine(config.AlertsConfig{Webhooks: []config.WebhookConfig{
		{Type: "slack", URLEnv: "TEST_WAM_SLACK"},
		{Type: "teams", URLEnv: "TEST_WAM_TEAMS"},
		{Type: "http", URLEnv: "TEST_WAM_HTTP"},
		{Type: "http", URLEnv: "TEST_WAM_UNSET"},
	}})
	e.Evaluate(types.DefaultThresholds(), store.Record{ID: 7, PH: types.Float(5.9), Site: "well-3"})
	e.Wait()

	if got := slack.received(); len(got) != 1 || got[0]["text"] != "*[WATER ALERT]* well-3: pH low (5.9 < 6.5)" {
		t.Errorf("slack: got %v", got)
	}
	if got := teams.received(); len(got) != 1 || got[0]["@type"] != "MessageCard" || got[0]["text"] != "pH low (5.9 < 6.5)" {
		t.Errorf("teams: got %v", got)
	}
	got := generic.received()
	if len(got) != 1 {
		t.Fatalf("http: got %d posts, want 1", len(got))
	}
	alert, _ := got[0]["alert"].(map[string]any)
	if alert["id"] != "a-1" || alert["reading_id"] != float64(7) || got[0]["site"] != "well-3" {
		t.Errorf("http: got %v", got[0])
	}
}

func TestDeliver_FailureCounted(t *testing.T) {
	bad := newHookServer(t, http.StatusInternalServerError)
	t.Setenv("TEST_WAM_BAD", bad.URL)

	e := newTestEngine(config.AlertsConfig{Webhooks: []config.WebhookConfig{
		{Type: "slack", URLEnv: "TEST_WAM_BAD"},
	}})
	failed := metrics.WebhookDeliveries.WithLabelValues("slack", "error")
	before := testutil.ToFloat64(failed)

	e.Evaluate(types.DefaultThresholds(), store.Record{PH: types.Float(5)})
	e.Wait()

	if got := testutil.ToFloat64(failed) - before; got != 1 {
		t.Errorf("failed deliveries delta: got %v, want 1", got)
	}
	if n := len(bad.received()); n != 1 {
		t.Errorf("posts: got %d, want 1", n)
	}
}
