package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/wamstack/wamstack/pkg/types"
)

func rows(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	return out
}

func TestLocal_Stats(t *testing.T) {
	res := Local(rows(t, `[
		{"ts":"t1","ph":7.0,"tds":"400","site":"a"},
		{"ts":"t2","ph":8.0,"tds":null,"site":"a"},
		{"ts":"t3","ph":"bad","iron":0.1}
	]`), types.DefaultThresholds())

	if res.Type != "local" {
		t.Errorf("type: got %q", res.Type)
	}
	ph := res.Stats["ph"]
	if ph.Count != 2 || *ph.Avg != 7.5 || *ph.Min != 7 || *ph.Max != 8 {
		t.Errorf("ph stats: got count=%d avg=%v min=%v max=%v", ph.Count, *ph.Avg, *ph.Min, *ph.Max)
	}
	if tds := res.Stats["tds"]; tds.Count != 1 || *tds.Avg != 400 {
		t.Errorf("tds stats: got %+v", tds)
	}
	if turb := res.Stats["turb"]; turb.Count != 0 || turb.Avg != nil {
		t.Errorf("turb stats: got %+v, want empty", turb)
	}
	if !strings.Contains(res.GeneratedText, "- PH: 2 readings, avg=7.5, min=7, max=8") {
		t.Errorf("summary missing ph line:\n%s", res.GeneratedText)
	}
	if !strings.Contains(res.GeneratedText, "- TURB: no data") {
		t.Errorf("summary missing turb line:\n%s", res.GeneratedText)
	}
	if !strings.Contains(res.GeneratedText, "No threshold breaches detected in provided rows.") {
		t.Errorf("summary should report no breaches:\n%s", res.GeneratedText)
	}
}

func TestLocal_BreachesGroupedBySite(t *testing.T) {
	res := Local(rows(t, `[
		{"ts":"t1","ph":5.5,"site":"b"},
		{"ts":"t2","tds":900,"site":"a"},
		{"ts":"t3","iron":0.9,"site":"b"},
		{"ts":"t4","ph":7}
	]`), types.DefaultThresholds())

	if len(res.Breaches) != 3 {
		t.Fatalf("breaches: got %d, want 3", len(res.Breaches))
	}
	var order []string
	for _, b := range res.Breaches {
		order = append(order, b.Site+"@"+b.TS)
	}
	if got := strings.Join(order, ","); got != "b@t1,b@t3,a@t2" {
		t.Errorf("breach order: got %s", got)
	}
	if res.Breaches[2].Reasons[0] != "TDS high (900 > 500)" {
		t.Errorf("reason: got %q", res.Breaches[2].Reasons[0])
	}
	if !strings.Contains(res.GeneratedText, "Alerts detected: 3 readings breach thresholds:") {
		t.Errorf("summary missing breach header:\n%s", res.GeneratedText)
	}
	if !strings.Contains(res.GeneratedText, "  • Site b @ t1: pH low (5.5 < 6.5)") {
		t.Errorf("summary missing breach line:\n%s", res.GeneratedText)
	}
}

func TestLocal_BreachLinesCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < 9; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"ts":"t%d","ph":4}`, i)
	}
	b.WriteString("]")

	res := Local(rows(t, b.String()), types.DefaultThresholds())
	if len(res.Breaches) != 9 {
		t.Fatalf("breaches: got %d, want 9", len(res.Breaches))
	}
	if n := strings.Count(res.GeneratedText, "  • Site"); n != maxBreachLines {
		t.Errorf("breach lines: got %d, want %d", n, maxBreachLines)
	}
}

func TestLocal_Suggestions(t *testing.T) {
	res := Local(rows(t, `[
		{"ph":9.5,"tds":800,"turb":9,"iron":0.6},
		{"ph":9.1,"tds":700,"turb":7,"iron":0.5}
	]`), types.DefaultThresholds())

	for _, want := range []string{
		" - TDS high: consider RO or ion-exchange.",
		" - pH out of range: lab-guided neutralizing agents.",
		" - Iron high: oxidation + filtration recommended.",
		" - Turbidity high: settling/filtration recommended.",
		"Next steps: 1) Re-sample suspect sites.",
	} {
		if !strings.Contains(res.GeneratedText, want) {
			t.Errorf("summary missing %q:\n%s", want, res.GeneratedText)
		}
	}

	clean := Local(rows(t, `[{"ph":7,"tds":100}]`), types.DefaultThresholds())
	if strings.Contains(clean.GeneratedText, " - TDS high") || strings.Contains(clean.GeneratedText, " - pH out of range") {
		t.Errorf("clean rows should not get suggestions:\n%s", clean.GeneratedText)
	}
}

func TestLocal_Chart(t *testing.T) {
	res := Local(rows(t, `[
		{"ts":"t1","ph":7.1,"tds":"n/a"},
		{"ts":"t2","turb":"2.5"}
	]`), types.DefaultThresholds())

	if len(res.Charts) != 1 {
		t.Fatalf("charts: got %d, want 1", len(res.Charts))
	}
	c := res.Charts[0]
	if c.ID != "main" || len(c.Labels) != 2 || c.Labels[1] != "t2" {
		t.Errorf("chart: got id=%q labels=%v", c.ID, c.Labels)
	}
	if len(c.Datasets) != 4 {
		t.Fatalf("datasets: got %d, want 4", len(c.Datasets))
	}
	wantLabels := []string{"pH", "TDS", "Turb", "Iron"}
	for i, ds := range c.Datasets {
		if ds.Label != wantLabels[i] || len(ds.Data) != 2 {
			t.Errorf("dataset %d: got label=%q len=%d", i, ds.Label, len(ds.Data))
		}
	}
	if *c.Datasets[0].Data[0] != 7.1 || c.Datasets[1].Data[0] != nil || *c.Datasets[2].Data[1] != 2.5 {
		t.Errorf("dataset values not aligned with labels")
	}

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"generated_text":`) || !strings.Contains(string(raw), `"data":[7.1,null]`) {
		t.Errorf("wire form: %s", raw)
	}
}
