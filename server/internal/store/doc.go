// Package store persists recent sensor readings and the current alert
// thresholds. Three backends implement Store:
//
//   - Memory: in-process ring, lost on restart
//   - Badger: BadgerDB on disk (or in memory), zstd-compressed JSON values
//   - Redis: a shared LPUSH/LTRIM list of JSON records
//
// Every backend keeps at most the configured capacity of readings and returns
// them newest first.
package store
