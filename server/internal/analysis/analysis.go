// Package analysis computes the server's local (heuristic) analysis of a set
// of readings: per-channel statistics, threshold breaches, suggested actions,
// and a chart spec the console splices into its series.
package analysis

import (
	"fmt"
	"strings"

	"github.com/wamstack/wamstack/pkg/types"
	"github.com/wamstack/wamstack/server/internal/alerts"
	"github.com/wamstack/wamstack/server/internal/store"
)

// maxBreachLines bounds how many breaches are listed in the summary text.
const maxBreachLines = 6

// channel describes one measured field for reporting.
type channel struct {
	key   string
	title string
	chart string
	value func(store.Record) *float64
}

var channels = []channel{
	{"ph", "PH", "pH", func(r store.Record) *float64 { return r.PH }},
	{"tds", "TDS", "TDS", func(r store.Record) *float64 { return r.TDS }},
	{"turb", "TURB", "Turb", func(r store.Record) *float64 { return r.Turb }},
	{"iron", "IRON", "Iron", func(r store.Record) *float64 { return r.Iron }},
}

// Stat summarizes one channel. Avg, Min and Max are null when Count is 0.
type Stat struct {
	Count int      `json:"count"`
	Avg   *float64 `json:"avg"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
}

// Breach is one reading that violates at least one bound.
type Breach struct {
	Site    string       `json:"site"`
	TS      string       `json:"ts"`
	Reasons []string     `json:"reasons"`
	Reading store.Record `json:"reading"`
}

// Dataset is one channel's values aligned with Chart.Labels.
type Dataset struct {
	Label string     `json:"label"`
	Data  []*float64 `json:"data"`
}

// Chart is a chart spec. Datasets are always pH, TDS, Turb, Iron in that order.
type Chart struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Result is the body of a successful POST /api/v1/analyze.
type Result struct {
	Type          string          `json:"type"`
	GeneratedText string          `json:"generated_text"`
	Stats         map[string]Stat `json:"stats"`
	Breaches      []Breach        `json:"breaches"`
	Charts        []Chart         `json:"charts"`
}

// Local analyzes rows against th. Rows are raw reading objects; measurements
// are coerced the same way the ingest path does.
func Local(rows []map[string]any, th types.Thresholds) Result {
	recs := make([]store.Record, len(rows))
	for i, row := range rows {
		recs[i] = store.Parse(row)
	}

	res := Result{
		Type:     "local",
		Stats:    make(map[string]Stat, len(channels)),
		Breaches: breaches(recs, th),
		Charts:   []Chart{chart(recs)},
	}
	for _, ch := range channels {
		res.Stats[ch.key] = stat(recs, ch.value)
	}
	res.GeneratedText = summary(res, th)
	return res
}

func stat(recs []store.Record, value func(store.Record) *float64) Stat {
	var s Stat
	var sum, lo, hi float64
	for _, r := range recs {
		v := value(r)
		if v == nil {
			continue
		}
		if s.Count == 0 || *v < lo {
			lo = *v
		}
		if s.Count == 0 || *v > hi {
			hi = *v
		}
		sum += *v
		s.Count++
	}
	if s.Count > 0 {
		avg := sum / float64(s.Count)
		s.Avg, s.Min, s.Max = &avg, &lo, &hi
	}
	return s
}

// breaches groups rows by site, in order of each site's first appearance.
func breaches(recs []store.Record, th types.Thresholds) []Breach {
	var order []string
	bySite := make(map[string][]store.Record)
	for _, r := range recs {
		site := r.Site
		if site == "" {
			site = "unknown"
		}
		if _, ok := bySite[site]; !ok {
			order = append(order, site)
		}
		bySite[site] = append(bySite[site], r)
	}

	out := []Breach{}
	for _, site := range order {
		for _, r := range bySite[site] {
			if reasons := alerts.Reasons(th, r); len(reasons) > 0 {
				out = append(out, Breach{Site: site, TS: r.TS, Reasons: reasons, Reading: r})
			}
		}
	}
	return out
}

func chart(recs []store.Record) Chart {
	c := Chart{ID: "main", Title: "Measured Trends", Labels: make([]string, len(recs))}
	for i, r := range recs {
		c.Labels[i] = r.TS
	}
	for _, ch := range channels {
		ds := Dataset{Label: ch.chart, Data: make([]*float64, len(recs))}
		for i, r := range recs {
			ds.Data[i] = ch.value(r)
		}
		c.Datasets = append(c.Datasets, ds)
	}
	return c
}

func summary(res Result, th types.Thresholds) string {
	var b strings.Builder
	b.WriteString("Local WAM analysis summary:\n")
	for _, ch := range channels {
		s := res.Stats[ch.key]
		if s.Count == 0 {
			fmt.Fprintf(&b, "- %s: no data\n", ch.title)
			continue
		}
		fmt.Fprintf(&b, "- %s: %d readings, avg=%.3g, min=%s, max=%s\n",
			ch.title, s.Count, *s.Avg, num(*s.Min), num(*s.Max))
	}

	b.WriteString("\n")
	if len(res.Breaches) == 0 {
		b.WriteString("No threshold breaches detected in provided rows.\n")
	} else {
		fmt.Fprintf(&b, "Alerts detected: %d readings breach thresholds:\n", len(res.Breaches))
		for i, br := range res.Breaches {
			if i == maxBreachLines {
				break
			}
			fmt.Fprintf(&b, "  • Site %s @ %s: %s\n", br.Site, br.TS, strings.Join(br.Reasons, "; "))
		}
	}

	b.WriteString("\nSuggested actions (heuristic):\n")
	avg := func(key string) (float64, bool) {
		s := res.Stats[key]
		if s.Avg == nil || *s.Avg == 0 {
			return 0, false
		}
		return *s.Avg, true
	}
	if v, ok := avg("tds"); ok && v > th.TDSMax {
		b.WriteString(" - TDS high: consider RO or ion-exchange.\n")
	}
	if v, ok := avg("ph"); ok && (v < th.PHLow || v > th.PHHigh) {
		b.WriteString(" - pH out of range: lab-guided neutralizing agents.\n")
	}
	if v, ok := avg("iron"); ok && v > th.IronMax {
		b.WriteString(" - Iron high: oxidation + filtration recommended.\n")
	}
	if v, ok := avg("turb"); ok && v > th.TurbMax {
		b.WriteString(" - Turbidity high: settling/filtration recommended.\n")
	}

	b.WriteString("\nNext steps: 1) Re-sample suspect sites. 2) Send failing samples to lab. 3) Inspect source/distribution if multiple sites affected.")
	return b.String()
}

func num(v float64) string {
	return fmt.Sprintf("%g", v)
}
