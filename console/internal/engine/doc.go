// Package engine is the console's long-lived service object. It owns the
// series buffer, the advisory arbitrator and the thresholds, serializes every
// mutation behind one mutex, re-evaluates the latest reading after each
// mutation and coalesces downstream refreshes through the refresh scheduler.
//
// Every ingestion path (snapshot, stream, manual entry, bulk import and
// analysis results) goes through the Engine. It implements stream.Handler so
// the streaming client can feed it directly.
package engine
