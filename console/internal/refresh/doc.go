// Package refresh coalesces bursts of state mutations into at most one
// downstream refresh per frame.
//
// Scheduler.Request marks the state dirty. The first Request after a refresh
// arms a single pending frame; later Requests before that frame fires are
// absorbed. When the frame fires the dirty flag is cleared first and the
// refresh callback runs, so it observes the state as of the frame boundary
// and any mutation racing with it arms the next frame instead of being lost.
//
// Run drives the frames and must be started in its own goroutine.
package refresh
