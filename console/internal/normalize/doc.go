// Package normalize maps raw input records of unknown shape (CSV rows, JSON
// objects from the stream or the snapshot endpoint, manual-entry forms) to
// canonical types.Reading values.
//
// Timestamps are resolved from ts, time, timestamp, then date, falling back
// to the ingestion time. Numeric fields accept case and alias variants and go
// through a permissive parse: every character other than digits, sign,
// decimal point and exponent marker is stripped, and a residual that does not
// parse to a finite number becomes "no value".
//
// Normalizer.All additionally drops readings that carry no chemical signal
// and sorts the rest ascending by timestamp. It is the only place where
// global reordering happens.
package normalize
