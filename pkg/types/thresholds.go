package types

import "fmt"

// Default threshold bounds.
const (
	DefaultPHLow   = 6.5
	DefaultPHHigh  = 8.5
	DefaultTDSMax  = 500
	DefaultTurbMax = 5
	DefaultIronMax = 0.3
)

// Thresholds holds the operator-configurable alert bounds. pH alerts outside
// [PHLow, PHHigh]; the other channels alert when strictly above their max.
type Thresholds struct {
	PHLow   float64 `yaml:"ph_low"   json:"ph_min"`
	PHHigh  float64 `yaml:"ph_high"  json:"ph_max"`
	TDSMax  float64 `yaml:"tds_max"  json:"tds_max"`
	TurbMax float64 `yaml:"turb_max" json:"turb_max"`
	IronMax float64 `yaml:"iron_max" json:"iron_max"`
}

// DefaultThresholds returns the documented default bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PHLow:   DefaultPHLow,
		PHHigh:  DefaultPHHigh,
		TDSMax:  DefaultTDSMax,
		TurbMax: DefaultTurbMax,
		IronMax: DefaultIronMax,
	}
}

// Validate checks that the bounds are usable.
func (t Thresholds) Validate() error {
	if t.PHLow > t.PHHigh {
		return fmt.Errorf("ph_low %.2f exceeds ph_high %.2f", t.PHLow, t.PHHigh)
	}
	if t.TDSMax <= 0 || t.TurbMax <= 0 || t.IronMax <= 0 {
		return fmt.Errorf("tds_max, turb_max and iron_max must be positive")
	}
	return nil
}
