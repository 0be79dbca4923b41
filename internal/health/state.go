// Package health tracks the scanner's liveness signals — feed
// connectivity, last window activity, and write-queue backlog — so
// the HTTP health handler (out of scope per spec.md, wired in
// cmd/scanner) has something to report against.
//
// Grounded on original_source/src/api/health.rs's atomics-backed
// HealthState. Here cmd/scanner's reportHealthAndMetrics loop sets the
// WS-connected flag and write-queue depth every 2s; SetLastWindowAt has
// no caller, so the last-window time stays unset.
package health

import (
	"sync/atomic"
	"time"
)

// State is the shared, lock-free health snapshot. Zero value is
// usable; construct with New for clarity at call sites.
type State struct {
	wsConnected      atomic.Bool
	lastWindowAtNs   atomic.Int64
	writeQueuePending atomic.Int64
}

// New returns an empty State.
func New() *State {
	return &State{}
}

// SetWSConnected records the Feed Connector's current connection state.
func (s *State) SetWSConnected(v bool) {
	s.wsConnected.Store(v)
}

// WSConnected reports the Feed Connector's last known connection state.
func (s *State) WSConnected() bool {
	return s.wsConnected.Load()
}

// SetLastWindowAt records the timestamp of the most recent window
// close event, for an "are we still seeing activity" check.
func (s *State) SetLastWindowAt(t time.Time) {
	s.lastWindowAtNs.Store(t.UnixNano())
}

// LastWindowAt returns the last recorded window-close timestamp, or
// the zero Time if none has been recorded yet.
func (s *State) LastWindowAt() time.Time {
	ns := s.lastWindowAtNs.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// IncWriteQueuePending increments the approximate count of window
// events queued for the Persistence Writer.
func (s *State) IncWriteQueuePending() {
	s.writeQueuePending.Add(1)
}

// DecWriteQueuePending decrements the approximate count of window
// events queued for the Persistence Writer.
func (s *State) DecWriteQueuePending() {
	s.writeQueuePending.Add(-1)
}

// SetWriteQueuePending overwrites the pending count outright, for
// callers (the Window Consumer's GrowableBuffer) that already track
// an authoritative depth rather than incrementing/decrementing.
func (s *State) SetWriteQueuePending(n int) {
	s.writeQueuePending.Store(int64(n))
}

// WriteQueuePending returns the approximate write-queue depth.
func (s *State) WriteQueuePending() int64 {
	return s.writeQueuePending.Load()
}
