package presence

import "time"

// Clock supplies time to the registry.
//
// Now is the wall clock used for lost and reacquired instants. Monotonic is
// the elapsed time since an arbitrary fixed origin; it must never go
// backwards and is the only basis for timeout decisions.
type Clock interface {
	Now() time.Time
	Monotonic() time.Duration
}

// SystemClock is a Clock backed by the process clock.
// Monotonic readings come from Go's monotonic clock and are unaffected by
// wall-clock adjustments (NTP steps, DST).
type SystemClock struct {
	origin time.Time
}

// NewSystemClock creates a SystemClock whose monotonic origin is now.
func NewSystemClock() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

// Now returns the current wall-clock time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// Monotonic returns the time elapsed since the clock was created.
func (c *SystemClock) Monotonic() time.Duration {
	return time.Since(c.origin)
}
