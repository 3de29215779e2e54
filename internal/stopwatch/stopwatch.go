// Package stopwatch is a restartable soft timer for polling loops.
package stopwatch

import "time"

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// Stopwatch measures time since the last Restart.
type Stopwatch struct {
	now  Clock
	last time.Time
}

// New returns a started stopwatch. A nil clock uses time.Now.
func New(clock Clock) *Stopwatch {
	if clock == nil {
		clock = time.Now
	}
	s := &Stopwatch{now: clock}
	s.Restart()
	return s
}

func (s *Stopwatch) Restart() { s.last = s.now() }

func (s *Stopwatch) Elapsed() time.Duration { return s.now().Sub(s.last) }

// HasPassed reports whether at least d has elapsed since the last Restart.
func (s *Stopwatch) HasPassed(d time.Duration) bool { return s.Elapsed() >= d }

func (s *Stopwatch) HasPassedMs(ms uint32) bool {
	return s.HasPassed(time.Duration(ms) * time.Millisecond)
}

func (s *Stopwatch) HasPassedUs(us uint32) bool {
	return s.HasPassed(time.Duration(us) * time.Microsecond)
}

// Lap reports whether d has elapsed and, if so, restarts the stopwatch.
func (s *Stopwatch) Lap(d time.Duration) bool {
	if !s.HasPassed(d) {
		return false
	}
	s.Restart()
	return true
}
