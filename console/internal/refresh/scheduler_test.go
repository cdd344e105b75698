package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// manualFrames replaces the scheduler's frame source with a channel the test
// ticks by hand.
func manualFrames(s *Scheduler) chan time.Time {
	frames := make(chan time.Time)
	s.frame = func() <-chan time.Time { return frames }
	return frames
}

func startScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRequest_CoalescesWithinFrame(t *testing.T) {
	var (
		mu    sync.Mutex
		state int
		seen  []int
	)
	s := New(time.Hour, func() {
		mu.Lock()
		seen = append(seen, state)
		mu.Unlock()
	})
	frames := manualFrames(s)
	startScheduler(t, s)

	const k = 50
	for i := 1; i <= k; i++ {
		mu.Lock()
		state = i
		mu.Unlock()
		s.Request()
	}

	frames <- time.Now()
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	})

	// No further frame is armed, so nothing else may run.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 {
		t.Fatalf("refreshes: got %d, want 1", len(seen))
	}
	if seen[0] != k {
		t.Errorf("refresh observed state %d, want %d", seen[0], k)
	}
}

func TestRequest_AfterRefreshArmsNextFrame(t *testing.T) {
	var calls atomic.Int32
	s := New(time.Hour, func() { calls.Add(1) })
	frames := manualFrames(s)
	startScheduler(t, s)

	s.Request()
	frames <- time.Now()
	waitFor(t, func() bool { return calls.Load() == 1 })
	waitFor(t, func() bool { return !s.Pending() })

	s.Request()
	s.Request()
	if !s.Pending() {
		t.Fatal("Pending: expected true after Request")
	}
	frames <- time.Now()
	waitFor(t, func() bool { return calls.Load() == 2 })
}

func TestRequest_NeverBlocksWithoutRun(t *testing.T) {
	s := New(time.Hour, func() {})
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			s.Request()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Request blocked")
	}
}

func TestRun_RealFrames(t *testing.T) {
	var calls atomic.Int32
	s := New(5*time.Millisecond, func() { calls.Add(1) })
	startScheduler(t, s)

	for i := 0; i < 10; i++ {
		s.Request()
	}
	waitFor(t, func() bool { return calls.Load() >= 1 })
	time.Sleep(30 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("refreshes: got %d, want 1", n)
	}
}
