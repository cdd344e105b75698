// Package types defines shared Go types used by both the console and server.
// These are the canonical in-memory representations of water-quality
// readings, threshold bounds, and the push-stream envelope.
package types
