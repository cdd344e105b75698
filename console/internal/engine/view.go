package engine

import (
	"math"
	"strconv"
	"time"

	"github.com/wamstack/wamstack/console/internal/advisory"
	"github.com/wamstack/wamstack/console/internal/evaluate"
	"github.com/wamstack/wamstack/pkg/types"
)

// recentRows is the number of rows in View.Recent.
const recentRows = 20

// View is the display state delivered on every refresh.
type View struct {
	Labels   []time.Time                `json:"labels"`
	Channels map[types.Field][]*float64 `json:"channels"`
	Latest   Stats                      `json:"latest"`

	// Recent holds the newest readings, newest first.
	Recent []types.Reading `json:"recent"`

	Detected     string                `json:"detected"`
	Alerts       []evaluate.Alert      `json:"alerts"`
	Advisory     advisory.State        `json:"advisory"`
	Status       Notice                `json:"status"`
	Distribution evaluate.Distribution `json:"distribution"`
	Thresholds   types.Thresholds      `json:"thresholds"`
	Stream       string                `json:"stream"`
	Capacity     int                   `json:"capacity"`
}

// Stats are the latest channel values formatted for display.
type Stats struct {
	PH        string `json:"ph"`
	TDS       string `json:"tds"`
	Turbidity string `json:"turb"`
	Iron      string `json:"iron"`
}

// View returns a consistent snapshot of the display state.
func (e *Engine) View() View {
	th := e.Thresholds()

	e.mu.Lock()
	defer e.mu.Unlock()

	rs := e.buf.Readings()
	v := View{
		Labels:       e.buf.Timestamps(),
		Channels:     make(map[types.Field][]*float64, len(types.Fields)),
		Detected:     e.result.Detected,
		Alerts:       e.result.Alerts,
		Advisory:     e.adv.State(),
		Status:       e.status,
		Distribution: evaluate.Buckets(rs, th),
		Thresholds:   th,
		Stream:       e.link.String(),
		Capacity:     e.buf.Cap(),
	}
	for _, f := range types.Fields {
		v.Channels[f] = e.buf.Channel(f)
	}

	var latest types.Reading
	if r, ok := e.buf.Latest(); ok {
		latest = r
	}
	v.Latest = Stats{
		PH:        fixed2(latest.PH),
		TDS:       rounded(latest.TDS),
		Turbidity: fixed2(latest.Turbidity),
		Iron:      fixed2(latest.Iron),
	}

	for i := len(rs) - 1; i >= 0 && len(v.Recent) < recentRows; i-- {
		v.Recent = append(v.Recent, rs[i])
	}
	return v
}

func fixed2(v *float64) string {
	if v == nil {
		return advisory.Placeholder
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func rounded(v *float64) string {
	if v == nil {
		return advisory.Placeholder
	}
	return strconv.FormatFloat(math.Round(*v), 'f', 0, 64)
}
