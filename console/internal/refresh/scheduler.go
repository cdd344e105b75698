package refresh

import (
	"context"
	"sync"
	"time"
)

// DefaultFrame is the frame interval used when none is configured (~60 Hz).
const DefaultFrame = 16 * time.Millisecond

// Scheduler runs fn at most once per frame while requests are pending.
type Scheduler struct {
	fn func()

	mu      sync.Mutex
	pending bool
	kick    chan struct{}

	// frame returns a channel that fires at the next frame boundary.
	// Injectable so tests drive frames by hand.
	frame func() <-chan time.Time
}

// New returns a Scheduler that calls fn once per frame of length interval.
func New(interval time.Duration, fn func()) *Scheduler {
	if interval <= 0 {
		interval = DefaultFrame
	}
	return &Scheduler{
		fn:    fn,
		kick:  make(chan struct{}, 1),
		frame: func() <-chan time.Time { return time.After(interval) },
	}
}

// Request asks for a refresh at the next frame. It never blocks and is
// idempotent within a frame.
func (s *Scheduler) Request() {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return
	}
	s.pending = true
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Pending reports whether a refresh is armed but has not run yet.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Run waits for requests and fires fn once per armed frame. It blocks until
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
		}

		select {
		case <-ctx.Done():
			return
		case <-s.frame():
		}

		s.mu.Lock()
		s.pending = false
		s.mu.Unlock()

		s.fn()
	}
}
