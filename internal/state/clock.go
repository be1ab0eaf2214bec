package state

import "time"

// Clock supplies the "now" used for timestamps and staleness. The system
// clock's readings carry Go's monotonic component, so differences between
// them are immune to wall clock steps.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
