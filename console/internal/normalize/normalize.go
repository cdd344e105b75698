package normalize

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wamstack/wamstack/pkg/types"
)

// Record is one raw input row.
type Record = map[string]any

// Key aliases, tried in order. Exact matches win over case-insensitive ones.
var (
	timeKeys = []string{"ts", "time", "timestamp", "date"}
	siteKeys = []string{"site", "Site"}
	latKeys  = []string{"lat", "latitude"}
	lonKeys  = []string{"lon", "longitude", "lng"}

	fieldKeys = map[types.Field][]string{
		types.FieldPH:        {"ph", "pH", "PH"},
		types.FieldTDS:       {"tds", "TDS"},
		types.FieldTurbidity: {"turb", "turbidity", "Turbidity", "TURB"},
		types.FieldIron:      {"iron", "Iron", "fe", "Fe"},
	}
)

// timeLayouts are tried in order for string timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// Normalizer converts raw records to Readings.
type Normalizer struct {
	// Site returns the currently selected site label used when a record has
	// none. May be nil.
	Site func() string

	now func() time.Time // injectable for deterministic tests
}

// New returns a Normalizer that labels site-less records via site.
func New(site func() string) *Normalizer {
	return &Normalizer{Site: site, now: time.Now}
}

// One normalizes a single record. The boolean is false when the resulting
// Reading carries no chemical signal and must not be admitted.
func (n *Normalizer) One(rec Record) (types.Reading, bool) {
	r := types.Reading{
		Timestamp: n.timestamp(rec),
		Site:      n.site(rec),
		Lat:       Number(lookup(rec, latKeys)),
		Lon:       Number(lookup(rec, lonKeys)),
	}
	for _, f := range types.Fields {
		r.SetValue(f, Number(lookup(rec, fieldKeys[f])))
	}
	return r, r.HasSignal()
}

// All normalizes recs, drops inadmissible readings and returns the rest
// sorted ascending by timestamp. Equal timestamps keep input order.
// The second return value is the number of dropped records.
func (n *Normalizer) All(recs []Record) ([]types.Reading, int) {
	out := make([]types.Reading, 0, len(recs))
	for _, rec := range recs {
		if r, ok := n.One(rec); ok {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, len(recs) - len(out)
}

func (n *Normalizer) timestamp(rec Record) time.Time {
	for _, k := range timeKeys {
		v, ok := rec[k]
		if !ok {
			continue
		}
		if t, ok := ParseTime(v); ok {
			return t
		}
	}
	return n.now().UTC()
}

func (n *Normalizer) site(rec Record) string {
	s, _ := lookup(rec, siteKeys).(string)
	return n.SiteOr(s)
}

// SiteOr returns s unless it is blank, then the selected site, then "unknown".
func (n *Normalizer) SiteOr(s string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	if n.Site != nil {
		if s := n.Site(); s != "" {
			return s
		}
	}
	return "unknown"
}

// lookup returns the first present, non-nil value among keys. Exact key
// matches are tried before a case-insensitive scan.
func lookup(rec Record, keys []string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	for _, k := range keys {
		for rk, v := range rec {
			if v != nil && strings.EqualFold(rk, k) {
				return v
			}
		}
	}
	return nil
}

// Number parses v permissively. It returns nil for absent, empty, non-numeric
// or non-finite input; it never returns NaN or an infinity.
func Number(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		return Number(x.String())
	case string:
		s := strings.Map(keepNumeric, x)
		if s == "" {
			return nil
		}
		p, err := strconv.ParseFloat(s, 64)
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

func keepNumeric(r rune) rune {
	switch {
	case r >= '0' && r <= '9', r == '.', r == '-', r == '+', r == 'e', r == 'E':
		return r
	}
	return -1
}

// ParseTime converts a raw timestamp value. Strings are tried against common
// layouts; numbers are Unix epoch milliseconds.
func ParseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
		return time.Time{}, false
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(x)).UTC(), true
	case int64:
		return time.UnixMilli(x).UTC(), true
	case int:
		return time.UnixMilli(int64(x)).UTC(), true
	case json.Number:
		return ParseTime(x.String())
	}
	return time.Time{}, false
}
