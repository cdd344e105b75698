package alerts

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wamstack/wamstack/pkg/types"
	"github.com/wamstack/wamstack/server/internal/config"
	"github.com/wamstack/wamstack/server/internal/metrics"
	"github.com/wamstack/wamstack/server/internal/store"
)

// Engine checks each stored reading against the current thresholds, keeps a
// bounded history of the alerts it creates, and delivers them to webhooks.
//
// Engine is safe for concurrent use.
type Engine struct {
	webhooks []config.WebhookConfig
	client   *http.Client
	limit    int

	mu      sync.Mutex
	history []types.AlertPayload // oldest first

	now   func() time.Time
	newID func() string
	wg    sync.WaitGroup // in-flight deliveries
}

// New creates an Engine from the server alert configuration.
// An Engine without webhooks still records history.
func New(cfg config.AlertsConfig) *Engine {
	limit := cfg.History
	if limit <= 0 {
		limit = config.DefaultHistory
	}
	return &Engine{
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
		limit:    limit,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Reasons lists every bound rec breaches, pH first, in the form
// "pH low (6.1 < 6.5)". Absent measurements never breach.
func Reasons(th types.Thresholds, rec store.Record) []string {
	var out []string
	if rec.PH != nil {
		if *rec.PH < th.PHLow {
			out = append(out, "pH low ("+num(*rec.PH)+" < "+num(th.PHLow)+")")
		}
		if *rec.PH > th.PHHigh {
			out = append(out, "pH high ("+num(*rec.PH)+" > "+num(th.PHHigh)+")")
		}
	}
	above := func(label string, v *float64, bound float64) {
		if v != nil && *v > bound {
			out = append(out, label+" high ("+num(*v)+" > "+num(bound)+")")
		}
	}
	above("TDS", rec.TDS, th.TDSMax)
	above("Turbidity", rec.Turb, th.TurbMax)
	above("Iron", rec.Iron, th.IronMax)
	return out
}

// Evaluate creates an alert when rec breaches th. The alert is recorded and
// webhook delivery runs in the background.
func (e *Engine) Evaluate(th types.Thresholds, rec store.Record) (types.AlertPayload, bool) {
	reasons := Reasons(th, rec)
	if len(reasons) == 0 {
		return types.AlertPayload{}, false
	}

	a := types.AlertPayload{
		ID:        e.newID(),
		TS:        e.now().UTC().Format(time.RFC3339),
		Message:   strings.Join(reasons, "; "),
		ReadingID: rec.ID,
	}

	e.mu.Lock()
	e.history = append(e.history, a)
	if len(e.history) > e.limit {
		e.history = e.history[len(e.history)-e.limit:]
	}
	e.mu.Unlock()

	metrics.AlertsFired.Inc()
	slog.Warn("alerts: threshold breached",
		"reading_id", rec.ID,
		"site", rec.Site,
		"message", a.Message,
	)

	if len(e.webhooks) > 0 {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.deliver(a, rec.Site)
		}()
	}
	return a, true
}

// Recent returns up to n alerts, newest first.
func (e *Engine) Recent(n int) []types.AlertPayload {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > len(e.history) {
		n = len(e.history)
	}
	out := make([]types.AlertPayload, 0, max(n, 0))
	for i := len(e.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, e.history[i])
	}
	return out
}

// Wait blocks until in-flight webhook deliveries finish.
func (e *Engine) Wait() { e.wg.Wait() }

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
