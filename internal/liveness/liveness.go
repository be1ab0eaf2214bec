// Package liveness turns message age into a connected/disconnected flag.
package liveness

import "time"

// DefaultTimeout is the bus message timeout shared by all nodes.
const DefaultTimeout = 5 * time.Second

// IsConnected reports whether a message seen at last is still fresh at now.
// An age equal to timeout is already stale. A zero last (never seen) is
// always disconnected.
//
// now and last should both come from time.Now() in the same process so the
// subtraction uses the monotonic clock and ignores wall clock corrections.
func IsConnected(now, last time.Time, timeout time.Duration) bool {
	if last.IsZero() {
		return false
	}
	return now.Sub(last) < timeout
}

// Tracker applies one fixed timeout.
type Tracker struct {
	Timeout time.Duration
}

func NewTracker(timeout time.Duration) Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return Tracker{Timeout: timeout}
}

func (t Tracker) IsConnected(now, last time.Time) bool {
	return IsConnected(now, last, t.Timeout)
}
