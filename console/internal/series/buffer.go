package series

import (
	"time"

	"github.com/wamstack/wamstack/pkg/types"
)

// DefaultCapacity is the number of readings held when no capacity is configured.
const DefaultCapacity = 1000

// Buffer is a bounded FIFO of readings.
type Buffer struct {
	ring []types.Reading
	head int // index of the oldest entry
	size int
}

// New creates an empty Buffer holding at most capacity readings.
// A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{ring: make([]types.Reading, capacity)}
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.ring) }

// Len returns the number of readings held.
func (b *Buffer) Len() int { return b.size }

// Append pushes r to the newest end, evicting the oldest entry when full.
// It returns the number of evicted readings (0 or 1).
func (b *Buffer) Append(r types.Reading) int {
	if b.size < len(b.ring) {
		b.ring[(b.head+b.size)%len(b.ring)] = r
		b.size++
		return 0
	}
	b.ring[b.head] = r
	b.head = (b.head + 1) % len(b.ring)
	return 1
}

// ReplaceAll discards the current content and installs rs in order. When rs
// is longer than the capacity only the last Cap() readings are kept.
func (b *Buffer) ReplaceAll(rs []types.Reading) {
	if len(rs) > len(b.ring) {
		rs = rs[len(rs)-len(b.ring):]
	}
	clear(b.ring)
	copy(b.ring, rs)
	b.head = 0
	b.size = len(rs)
}

// At returns the i-th reading, oldest first. It panics if i is out of range.
func (b *Buffer) At(i int) types.Reading {
	if i < 0 || i >= b.size {
		panic("series: index out of range")
	}
	return b.ring[(b.head+i)%len(b.ring)]
}

// LatestIndex returns the index of the newest reading, or -1 when empty.
func (b *Buffer) LatestIndex() int {
	return b.size - 1
}

// Latest returns the newest reading and false when the buffer is empty.
func (b *Buffer) Latest() (types.Reading, bool) {
	if b.size == 0 {
		return types.Reading{}, false
	}
	return b.At(b.size - 1), true
}

// Readings returns a copy of the buffer content, oldest first.
func (b *Buffer) Readings() []types.Reading {
	out := make([]types.Reading, b.size)
	for i := range out {
		out[i] = b.At(i)
	}
	return out
}

// Tail returns a copy of at most n newest readings, oldest first.
func (b *Buffer) Tail(n int) []types.Reading {
	if n <= 0 || n > b.size {
		n = b.size
	}
	out := make([]types.Reading, n)
	for i := range out {
		out[i] = b.At(b.size - n + i)
	}
	return out
}

// Channel returns the values of field f, oldest first. Absent values are nil.
func (b *Buffer) Channel(f types.Field) []*float64 {
	out := make([]*float64, b.size)
	for i := range out {
		out[i] = b.At(i).Value(f)
	}
	return out
}

// Timestamps returns the ordering keys, oldest first.
func (b *Buffer) Timestamps() []time.Time {
	out := make([]time.Time, b.size)
	for i := range out {
		out[i] = b.At(i).Timestamp
	}
	return out
}
