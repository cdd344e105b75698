// Package series implements the bounded, insertion-ordered reading buffer
// that backs the console's charts and evaluations.
//
// Buffer is a fixed-capacity ring: Append is O(1) and evicts from the oldest
// end once capacity is reached; ReplaceAll installs a new series wholesale,
// keeping only the most recent entries when the input exceeds capacity.
// Each stored Reading holds all four chemical channels, so channel alignment
// is preserved by construction.
//
// Buffer is not safe for concurrent use; the engine serializes access.
package series
