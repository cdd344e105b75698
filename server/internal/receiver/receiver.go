package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wamstack/wamstack/pkg/types"
	"github.com/wamstack/wamstack/server/internal/alerts"
	"github.com/wamstack/wamstack/server/internal/metrics"
	"github.com/wamstack/wamstack/server/internal/store"
)

// ErrEmpty is returned by Ingest for a payload with no fields.
var ErrEmpty = errors.New("receiver: empty payload")

// Publisher fans a message out to stream subscribers.
type Publisher interface {
	PublishJSON(v any) error
}

// Receiver is the write path for sensor readings and threshold updates.
type Receiver struct {
	store  store.Store
	alerts *alerts.Engine
	pub    Publisher
	th     atomic.Pointer[types.Thresholds]
	now    func() time.Time
}

// New creates a Receiver that writes accepted readings to st, checks them
// with al against th, and publishes every event to pub.
func New(st store.Store, al *alerts.Engine, pub Publisher, th types.Thresholds) *Receiver {
	r := &Receiver{store: st, alerts: al, pub: pub, now: time.Now}
	r.th.Store(&th)
	return r
}

// InitialThresholds returns the bounds saved in st, or fallback when none
// were saved or they cannot be read.
func InitialThresholds(ctx context.Context, st store.Store, fallback types.Thresholds) types.Thresholds {
	th, ok, err := st.Thresholds(ctx)
	switch {
	case err != nil:
		slog.Warn("receiver: could not read saved thresholds, using config", "err", err)
		return fallback
	case !ok:
		return fallback
	case th.Validate() != nil:
		slog.Warn("receiver: saved thresholds invalid, using config", "err", th.Validate())
		return fallback
	}
	return th
}

// Ingest stores one raw sensor payload, broadcasts it as a reading event, and
// raises an alert when it breaches the current thresholds.
func (r *Receiver) Ingest(ctx context.Context, raw map[string]any) (store.Record, error) {
	if len(raw) == 0 {
		return store.Record{}, ErrEmpty
	}

	rec, err := r.store.Append(ctx, store.RecordFrom(raw, r.now()))
	if err != nil {
		return store.Record{}, fmt.Errorf("receiver: store reading: %w", err)
	}
	metrics.ReadingsReceived.Inc()

	slog.Debug("receiver: reading stored",
		"id", rec.ID,
		"site", rec.Site,
		"ts", rec.TS,
	)

	r.publish(types.KindReading, rec)
	if a, ok := r.alerts.Evaluate(r.Thresholds(), rec); ok {
		r.publish(types.KindAlert, a)
	}
	return rec, nil
}

// Thresholds returns the bounds in force.
func (r *Receiver) Thresholds() types.Thresholds {
	return *r.th.Load()
}

// SetThresholds validates, saves and installs th, then broadcasts a
// thresholds event.
func (r *Receiver) SetThresholds(ctx context.Context, th types.Thresholds) error {
	if err := th.Validate(); err != nil {
		return fmt.Errorf("receiver: %w", err)
	}
	if err := r.store.SaveThresholds(ctx, th); err != nil {
		return fmt.Errorf("receiver: save thresholds: %w", err)
	}
	r.th.Store(&th)
	slog.Info("receiver: thresholds updated",
		"ph_low", th.PHLow,
		"ph_high", th.PHHigh,
		"tds_max", th.TDSMax,
		"turb_max", th.TurbMax,
		"iron_max", th.IronMax,
	)
	r.publish(types.KindThresholds, th)
	return nil
}

func (r *Receiver) publish(kind string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("receiver: encode event", "type", kind, "err", err)
		return
	}
	if err := r.pub.PublishJSON(types.Envelope{Type: kind, Data: data}); err != nil {
		slog.Error("receiver: publish event", "type", kind, "err", err)
	}
}
