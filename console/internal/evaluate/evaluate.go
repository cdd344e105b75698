package evaluate

import (
	"fmt"
	"strings"

	"github.com/wamstack/wamstack/pkg/types"
)

// Detected labels used when no alert is raised.
const (
	LabelNoData   = "No data yet"
	LabelNoIssues = "No immediate issues"
)

// Alert is one threshold violation on the latest reading.
type Alert struct {
	Field types.Field `json:"field"`
	Value float64     `json:"value"`
}

// Result is the outcome of one evaluation.
type Result struct {
	// Alerts holds every violation in priority order. Alerts[0] is the top alert.
	Alerts []Alert `json:"alerts"`

	// Detected is the short label shown to the operator.
	Detected string `json:"detected"`
}

// Top returns the first alert in priority order.
func (r Result) Top() (Alert, bool) {
	if len(r.Alerts) == 0 {
		return Alert{}, false
	}
	return r.Alerts[0], true
}

// recommendations are the heuristic advisory texts keyed by field.
var recommendations = map[types.Field]string{
	types.FieldPH:        "Adjust pH: lime for low; acid dosing for high (lab guidance).",
	types.FieldTDS:       "Consider RO or ion-exchange for high TDS.",
	types.FieldTurbidity: "Investigate source; coagulation + filtration.",
	types.FieldIron:      "Oxidation + filtration or aeration.",
}

// fallbackRecommendation is used for a field without a dedicated text.
const fallbackRecommendation = "Inspect & lab test."

// Recommendation returns the heuristic advisory text for f.
func Recommendation(f types.Field) string {
	if s, ok := recommendations[f]; ok {
		return s
	}
	return fallbackRecommendation
}

// Latest evaluates r against th.
func Latest(r types.Reading, th types.Thresholds) Result {
	var alerts []Alert
	for _, f := range types.Fields {
		v := r.Value(f)
		if v == nil {
			continue
		}
		if violates(f, *v, th) {
			alerts = append(alerts, Alert{Field: f, Value: *v})
		}
	}
	res := Result{Alerts: alerts, Detected: LabelNoIssues}
	if top, ok := res.Top(); ok {
		res.Detected = Label(top)
	}
	return res
}

func violates(f types.Field, v float64, th types.Thresholds) bool {
	switch f {
	case types.FieldPH:
		return v < th.PHLow || v > th.PHHigh
	case types.FieldTDS:
		return v > th.TDSMax
	case types.FieldTurbidity:
		return v > th.TurbMax
	case types.FieldIron:
		return v > th.IronMax
	}
	return false
}

// Label formats the detected label for a: "pH 9.20", "TDS 612.00", "TURB 7.10".
func Label(a Alert) string {
	if a.Field == types.FieldPH {
		return fmt.Sprintf("pH %.2f", a.Value)
	}
	return fmt.Sprintf("%s %.2f", strings.ToUpper(string(a.Field)), a.Value)
}
