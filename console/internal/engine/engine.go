package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wamstack/wamstack/console/internal/advisory"
	"github.com/wamstack/wamstack/console/internal/evaluate"
	"github.com/wamstack/wamstack/console/internal/metrics"
	"github.com/wamstack/wamstack/console/internal/normalize"
	"github.com/wamstack/wamstack/console/internal/refresh"
	"github.com/wamstack/wamstack/console/internal/series"
	"github.com/wamstack/wamstack/console/internal/stream"
	"github.com/wamstack/wamstack/pkg/types"
)

// Ingestion sources, used as the metrics label and in logs.
const (
	SourceSnapshot = "snapshot"
	SourceStream   = "stream"
	SourceManual   = "manual"
	SourceImport   = "import"
	SourceAnalysis = "analysis"
)

// Level grades a status notice.
type Level string

const (
	LevelInfo Level = "info"
	LevelOK   Level = "ok"
	LevelWarn Level = "warn"
)

// Notice is the one-line operator status.
type Notice struct {
	Text  string `json:"text"`
	Level Level  `json:"level"`
}

// Status texts.
const (
	StatusNoAlerts        = "No alerts"
	StatusAllGood         = "All good"
	StatusThresholds      = "Thresholds updated"
	StatusUnreachable     = "Server unreachable"
	StatusStreamConnected = "Stream connected"
	StatusStreamError     = "Stream error — reconnecting"
	StatusAnalysis        = "Analysis returned"
	StatusAnalysisCleared = "Analysis cleared"
	StatusLoaded          = "Loaded readings from server"
)

// Options configures an Engine.
type Options struct {
	// Capacity bounds the series buffer. Zero means series.DefaultCapacity.
	Capacity int

	// Frame is the refresh frame interval. Zero means refresh.DefaultFrame.
	Frame time.Duration

	// Thresholds are the initial bounds. The zero value means defaults.
	Thresholds types.Thresholds

	// Site returns the currently selected site for records without one.
	Site func() string

	// OnRefresh receives the View once per refresh frame. May be nil.
	OnRefresh func(View)

	// OnThresholds is called, on its own goroutine, when the stream reports
	// that server-side thresholds changed. May be nil.
	OnThresholds func()
}

// Engine is safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	buf    *series.Buffer
	adv    *advisory.Arbitrator
	result evaluate.Result
	status Notice
	link   stream.State

	norm       *normalize.Normalizer
	thresholds atomic.Pointer[types.Thresholds]
	sched      *refresh.Scheduler

	onRefresh    func(View)
	onThresholds func()
}

// New returns an Engine with an empty buffer and an unlocked advisory.
// Call Run to start delivering refreshes.
func New(opts Options) *Engine {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = series.DefaultCapacity
	}
	th := opts.Thresholds
	if th == (types.Thresholds{}) {
		th = types.DefaultThresholds()
	}

	e := &Engine{
		buf:          series.New(capacity),
		adv:          advisory.New(),
		norm:         normalize.New(opts.Site),
		onRefresh:    opts.OnRefresh,
		onThresholds: opts.OnThresholds,
	}
	e.thresholds.Store(&th)
	e.sched = refresh.New(opts.Frame, e.deliver)

	e.mu.Lock()
	e.evaluateLocked()
	e.mu.Unlock()
	return e
}

// Run delivers coalesced refreshes until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.sched.Run(ctx)
}

// Thresholds returns the bounds in effect.
func (e *Engine) Thresholds() types.Thresholds {
	return *e.thresholds.Load()
}

// SetThresholds installs new bounds. They apply from the next evaluation.
func (e *Engine) SetThresholds(th types.Thresholds) error {
	if err := th.Validate(); err != nil {
		return fmt.Errorf("engine: thresholds: %w", err)
	}
	e.thresholds.Store(&th)
	slog.Info("engine: thresholds updated",
		"ph_low", th.PHLow, "ph_high", th.PHHigh,
		"tds_max", th.TDSMax, "turb_max", th.TurbMax, "iron_max", th.IronMax)
	e.sched.Request()
	return nil
}

// Load bulk-normalizes recs and replaces the buffer with the result.
// It returns the number of admitted readings.
func (e *Engine) Load(recs []normalize.Record, source string) int {
	rs, dropped := e.norm.All(recs)
	if dropped > 0 {
		metrics.RecordsDropped.WithLabelValues("no_signal").Add(float64(dropped))
	}

	e.mu.Lock()
	e.buf.ReplaceAll(rs)
	e.evaluateLocked()
	if source == SourceSnapshot {
		e.status = Notice{Text: StatusLoaded, Level: LevelOK}
	}
	e.mu.Unlock()

	metrics.ReadingsIngested.WithLabelValues(source).Add(float64(len(rs)))
	slog.Info("engine: series replaced", "source", source, "admitted", len(rs), "dropped", dropped)
	e.sched.Request()
	return len(rs)
}

// Append normalizes rec and appends it. It reports whether the record was
// admitted; records without any chemical value are dropped.
func (e *Engine) Append(rec normalize.Record, source string) bool {
	r, ok := e.norm.One(rec)
	if !ok {
		metrics.RecordsDropped.WithLabelValues("no_signal").Inc()
		slog.Warn("engine: record has no chemical values, dropped", "source", source)
		return false
	}

	e.mu.Lock()
	e.buf.Append(r)
	e.evaluateLocked()
	e.mu.Unlock()

	metrics.ReadingsIngested.WithLabelValues(source).Inc()
	e.sched.Request()
	return true
}

// ApplyAnalysis installs an external analysis result: text always replaces
// the advisory and locks it. A non-nil chart is spliced into the series.
func (e *Engine) ApplyAnalysis(text string, chart *Chart) {
	e.mu.Lock()
	e.adv.Analysis(text)
	if chart != nil {
		n := e.spliceLocked(chart)
		metrics.ReadingsIngested.WithLabelValues(SourceAnalysis).Add(float64(n))
	}
	e.evaluateLocked()
	e.status = Notice{Text: StatusAnalysis, Level: LevelOK}
	e.mu.Unlock()

	slog.Info("engine: analysis applied", "chars", len(text), "chart", chart != nil)
	e.sched.Request()
}

// ClearAnalysis unlocks the advisory and restores the placeholder.
func (e *Engine) ClearAnalysis() {
	e.mu.Lock()
	e.adv.Clear()
	metrics.AdvisoryLocked.Set(0)
	e.status = Notice{Text: StatusAnalysisCleared, Level: LevelInfo}
	e.mu.Unlock()

	slog.Info("engine: analysis cleared")
	e.sched.Request()
}

// Notify replaces the status notice.
func (e *Engine) Notify(text string, level Level) {
	e.mu.Lock()
	e.status = Notice{Text: text, Level: level}
	e.mu.Unlock()
	e.sched.Request()
}

// Tail returns up to n of the most recent readings, oldest first.
func (e *Engine) Tail(n int) []types.Reading {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.Tail(n)
}

// Advisory returns the current advisory state.
func (e *Engine) Advisory() advisory.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.adv.State()
}

// evaluateLocked classifies the latest reading and runs the heuristic
// advisory path. e.mu must be held.
func (e *Engine) evaluateLocked() {
	defer func() {
		if e.adv.State().Locked() {
			metrics.AdvisoryLocked.Set(1)
		} else {
			metrics.AdvisoryLocked.Set(0)
		}
	}()

	latest, ok := e.buf.Latest()
	if !ok {
		e.result = evaluate.Result{Detected: evaluate.LabelNoData}
		e.adv.Reset()
		e.status = Notice{Text: StatusNoAlerts, Level: LevelInfo}
		return
	}

	res := evaluate.Latest(latest, e.Thresholds())
	e.result = res

	top, ok := res.Top()
	if !ok {
		e.adv.Reset()
		e.status = Notice{Text: StatusAllGood, Level: LevelOK}
		return
	}
	if !e.adv.Recommend(evaluate.Recommendation(top.Field)) {
		slog.Info("engine: advisory locked by analysis, heuristic not applied", "field", top.Field)
	}
	e.status = Notice{Text: fmt.Sprintf("%d immediate alert(s)", len(res.Alerts)), Level: LevelWarn}
}

// deliver is the refresh scheduler callback.
func (e *Engine) deliver() {
	metrics.Refreshes.Inc()
	if e.onRefresh == nil {
		return
	}
	e.onRefresh(e.View())
}

// --- stream.Handler ---------------------------------------------------------

var _ stream.Handler = (*Engine)(nil)

// HandleReading appends a streamed record.
func (e *Engine) HandleReading(rec map[string]any) {
	e.Append(rec, SourceStream)
}

// HandleAlert surfaces a server-side alert. The buffer is not touched.
func (e *Engine) HandleAlert(text string) {
	e.Notify("Alert: "+text, LevelWarn)
}

// HandleThresholds surfaces a server-side threshold change and, when
// configured, lets the collaborator refetch them.
func (e *Engine) HandleThresholds(raw json.RawMessage) {
	e.Notify(StatusThresholds, LevelInfo)
	if e.onThresholds != nil {
		go e.onThresholds()
	}
}

// HandleState tracks the live link and surfaces connect/failure notices.
func (e *Engine) HandleState(s stream.State, err error) {
	e.mu.Lock()
	e.link = s
	e.mu.Unlock()

	switch {
	case s == stream.Open:
		e.Notify(StatusStreamConnected, LevelOK)
	case s == stream.Closed && err != nil:
		e.Notify(StatusStreamError, LevelWarn)
	default:
		e.sched.Request()
	}
}
