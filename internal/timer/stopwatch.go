// Package timer provides a monotonic pause/resume stopwatch for measuring
// active composition time.
package timer

import (
	"sync"
	"time"
)

// Stopwatch accumulates elapsed time across pause/resume cycles. The zero
// reference is taken from time.Now, which carries a monotonic clock reading,
// so wall-clock adjustments do not skew measurements.
type Stopwatch struct {
	mu          sync.Mutex
	now         func() time.Time
	accumulated time.Duration
	startedAt   time.Time
	running     bool
}

// New creates a started stopwatch.
func New() *Stopwatch {
	return NewWithClock(time.Now)
}

// NewWithClock creates a started stopwatch using the given time source.
// Tests inject a fake clock here for deterministic duration math.
func NewWithClock(now func() time.Time) *Stopwatch {
	return &Stopwatch{
		now:       now,
		startedAt: now(),
		running:   true,
	}
}

// Elapsed returns total accumulated running time.
func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return s.accumulated
	}
	return s.accumulated + s.now().Sub(s.startedAt)
}

// Pause freezes the elapsed time. Pausing an already paused stopwatch is a
// no-op.
func (s *Stopwatch) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.accumulated += s.now().Sub(s.startedAt)
	s.running = false
}

// Resume restarts the clock without losing accumulated time. Resuming a
// running stopwatch is a no-op.
func (s *Stopwatch) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.startedAt = s.now()
	s.running = true
}

// Running reports whether the stopwatch is currently advancing.
func (s *Stopwatch) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
