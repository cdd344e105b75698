package stream

import (
	"math"
	"time"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 30 * time.Second
	backoffMultiplier = 1.8
)

// backoff implements truncated exponential backoff without jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current delay and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	b.current = time.Duration(math.Round(float64(b.current) * backoffMultiplier))
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

// peek returns the delay the next failure will use.
func (b *backoff) peek() time.Duration { return b.current }

func (b *backoff) reset() {
	b.current = backoffInitial
}
