// Package receiver is the server's write path. Receiver.Ingest coerces a raw
// sensor payload into a store.Record (ts defaulted to now), stores it, pushes
// {"type":"reading"} to stream subscribers, and pushes {"type":"alert"} when
// the reading breaches the current thresholds.
//
// SetThresholds validates and saves new bounds, then pushes {"type":"thresholds"}.
package receiver
