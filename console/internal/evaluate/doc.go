// Package evaluate classifies the latest reading against the current
// thresholds and buckets historical channel values for display aggregates.
//
// Latest is a pure function of (reading, thresholds). Candidate alerts are
// collected in fixed priority order pH, TDS, turbidity, iron and the first
// one wins; severity magnitude is never compared. Absent fields are skipped.
package evaluate
