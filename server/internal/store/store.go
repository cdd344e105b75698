package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wamstack/wamstack/pkg/types"
	"github.com/wamstack/wamstack/server/internal/config"
)

// Record is one stored reading, as returned by GET /api/v1/readings.
// Absent or non-numeric measurements are null.
type Record struct {
	ID   uint64   `json:"id"`
	TS   string   `json:"ts"`
	PH   *float64 `json:"ph"`
	TDS  *float64 `json:"tds"`
	Turb *float64 `json:"turb"`
	Iron *float64 `json:"iron"`
	Site string   `json:"site"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

// Store persists recent readings and the current threshold bounds.
// Implementations are safe for concurrent use.
type Store interface {
	// Append assigns the next ID to rec, stores it, and returns it.
	// Readings beyond the configured capacity are discarded oldest first.
	Append(ctx context.Context, rec Record) (Record, error)

	// Recent returns up to n readings, newest first.
	Recent(ctx context.Context, n int) ([]Record, error)

	// Thresholds returns the saved bounds; ok is false when none were saved.
	Thresholds(ctx context.Context) (th types.Thresholds, ok bool, err error)

	// SaveThresholds replaces the saved bounds.
	SaveThresholds(ctx context.Context, th types.Thresholds) error

	Close() error
}

// Open returns the backend selected by cfg.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendBadger:
		b, err := OpenBadger(cfg.Path, cfg.Capacity)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendRedis:
		r, err := NewRedis(ctx, cfg.RedisAddr, cfg.Capacity)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.BackendMemory, "":
		return NewMemory(cfg.Capacity), nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}

// RecordFrom builds a Record from a raw sensor payload like Parse, then sets a
// missing or blank ts to now in UTC.
func RecordFrom(raw map[string]any, now time.Time) Record {
	rec := Parse(raw)
	if strings.TrimSpace(rec.TS) == "" {
		rec.TS = now.UTC().Format("2006-01-02T15:04:05.000Z")
	}
	return rec
}

// Parse builds a Record from a raw reading object. Measurements are coerced
// to numbers; values that do not parse are null.
func Parse(raw map[string]any) Record {
	return Record{
		TS:   text(raw["ts"]),
		PH:   Number(raw["ph"]),
		TDS:  Number(raw["tds"]),
		Turb: Number(raw["turb"]),
		Iron: Number(raw["iron"]),
		Site: strings.TrimSpace(text(raw["site"])),
		Lat:  Number(raw["lat"]),
		Lon:  Number(raw["lon"]),
	}
}

// Number coerces a JSON value to a finite float. Strings are trimmed before
// parsing. Anything else, including NaN and infinities, yields nil.
func Number(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return nil
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = p
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
