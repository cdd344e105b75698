package engine

import (
	"time"

	"github.com/wamstack/wamstack/console/internal/normalize"
	"github.com/wamstack/wamstack/pkg/types"
)

// Chart is an alternate series returned with an analysis result: ordered
// labels plus up to four value arrays in channel order pH, TDS, turbidity,
// iron. A nil Datasets entry means that channel was not supplied.
type Chart struct {
	Labels   []string
	Datasets [][]*float64
}

// spliceLocked replaces the buffer with the chart's series and returns the
// number of readings installed. e.mu must be held.
//
// Labels fix the length. Supplied channels are truncated or padded with
// absent values to that length. A channel that was not supplied keeps the
// current values when the lengths line up, and is absent otherwise. Rows
// left without any value are dropped.
func (e *Engine) spliceLocked(c *Chart) int {
	cur := e.buf.Readings()

	var ts []time.Time
	if c.Labels != nil {
		now := time.Now().UTC()
		ts = make([]time.Time, len(c.Labels))
		for i, l := range c.Labels {
			t, ok := normalize.ParseTime(l)
			if !ok {
				t = now
			}
			ts[i] = t
		}
	} else {
		ts = e.buf.Timestamps()
	}

	aligned := len(cur) == len(ts)
	rs := make([]types.Reading, len(ts))
	for i := range rs {
		rs[i].Timestamp = ts[i]
		if aligned {
			rs[i].Site = cur[i].Site
		} else {
			rs[i].Site = e.norm.SiteOr("")
		}
	}

	for k, f := range types.Fields {
		switch {
		case k < len(c.Datasets) && c.Datasets[k] != nil:
			d := c.Datasets[k]
			for i := 0; i < len(rs) && i < len(d); i++ {
				rs[i].SetValue(f, d[i])
			}
		case aligned:
			for i := range rs {
				rs[i].SetValue(f, cur[i].Value(f))
			}
		}
	}

	kept := rs[:0]
	for _, r := range rs {
		if r.HasSignal() {
			kept = append(kept, r)
		}
	}
	e.buf.ReplaceAll(kept)
	return e.buf.Len()
}
