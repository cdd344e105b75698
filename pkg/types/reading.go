package types

import "time"

// Field identifies one measured chemical channel.
type Field string

// Channels in evaluation priority order. Alert selection and chart splicing
// both rely on this order.
const (
	FieldPH        Field = "ph"
	FieldTDS       Field = "tds"
	FieldTurbidity Field = "turb"
	FieldIron      Field = "iron"
)

// Fields lists every chemical channel in priority order.
var Fields = []Field{FieldPH, FieldTDS, FieldTurbidity, FieldIron}

// Reading is one normalized sensor sample. A nil value means the field was
// absent or could not be parsed; a Reading never carries NaN.
type Reading struct {
	Timestamp time.Time `json:"ts"`
	PH        *float64  `json:"ph"`
	TDS       *float64  `json:"tds"`
	Turbidity *float64  `json:"turb"`
	Iron      *float64  `json:"iron"`
	Site      string    `json:"site"`
	Lat       *float64  `json:"lat,omitempty"`
	Lon       *float64  `json:"lon,omitempty"`
}

// Value returns the reading's value for f, or nil if absent.
func (r Reading) Value(f Field) *float64 {
	switch f {
	case FieldPH:
		return r.PH
	case FieldTDS:
		return r.TDS
	case FieldTurbidity:
		return r.Turbidity
	case FieldIron:
		return r.Iron
	default:
		return nil
	}
}

// SetValue stores v as the value for f.
func (r *Reading) SetValue(f Field, v *float64) {
	switch f {
	case FieldPH:
		r.PH = v
	case FieldTDS:
		r.TDS = v
	case FieldTurbidity:
		r.Turbidity = v
	case FieldIron:
		r.Iron = v
	}
}

// HasSignal reports whether at least one chemical field is present.
// Readings without signal are never admitted to a series.
func (r Reading) HasSignal() bool {
	return r.PH != nil || r.TDS != nil || r.Turbidity != nil || r.Iron != nil
}

// Float returns a pointer to v. Convenience for literals in callers and tests.
func Float(v float64) *float64 { return &v }
