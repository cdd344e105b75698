package evaluate

import (
	"github.com/wamstack/wamstack/pkg/types"
)

// Counts is a Low/Mid/High partition of one channel.
type Counts struct {
	Low  int `json:"low"`
	Mid  int `json:"mid"`
	High int `json:"high"`
}

// Total returns the number of bucketed values.
func (c Counts) Total() int { return c.Low + c.Mid + c.High }

// Distribution holds the display aggregates for the bucketed channels.
type Distribution struct {
	PH        Counts `json:"ph"`
	TDS       Counts `json:"tds"`
	Turbidity Counts `json:"turb"`
}

// Buckets partitions every present value in rs. Absent values are not
// counted anywhere.
//
// Turbidity at or below TurbMax counts as Mid and above it as High; nothing
// lands in its Low bucket under the current policy.
func Buckets(rs []types.Reading, th types.Thresholds) Distribution {
	var d Distribution
	for _, r := range rs {
		if v := r.PH; v != nil {
			switch {
			case *v < th.PHLow:
				d.PH.Low++
			case *v > th.PHHigh:
				d.PH.High++
			default:
				d.PH.Mid++
			}
		}
		if v := r.TDS; v != nil {
			switch {
			case *v < th.TDSMax/2:
				d.TDS.Low++
			case *v > th.TDSMax:
				d.TDS.High++
			default:
				d.TDS.Mid++
			}
		}
		if v := r.Turbidity; v != nil {
			if *v <= th.TurbMax {
				d.Turbidity.Mid++
			} else {
				d.Turbidity.High++
			}
		}
	}
	return d
}
