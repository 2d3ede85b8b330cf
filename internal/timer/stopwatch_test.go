package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStopwatch_ElapsedWhileRunning(t *testing.T) {
	clock := newFakeClock()
	sw := NewWithClock(clock.now)

	clock.advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, sw.Elapsed())
	assert.True(t, sw.Running())
}

func TestStopwatch_PauseFreezesElapsed(t *testing.T) {
	clock := newFakeClock()
	sw := NewWithClock(clock.now)

	clock.advance(2 * time.Second)
	sw.Pause()
	clock.advance(10 * time.Second)

	assert.Equal(t, 2*time.Second, sw.Elapsed())
	assert.False(t, sw.Running())
}

func TestStopwatch_ResumeKeepsAccumulated(t *testing.T) {
	clock := newFakeClock()
	sw := NewWithClock(clock.now)

	clock.advance(2 * time.Second)
	sw.Pause()
	clock.advance(30 * time.Second) // paused gap, not counted
	sw.Resume()
	clock.advance(5 * time.Second)

	assert.Equal(t, 7*time.Second, sw.Elapsed())
}

func TestStopwatch_PauseWhenPausedIsNoop(t *testing.T) {
	clock := newFakeClock()
	sw := NewWithClock(clock.now)

	clock.advance(time.Second)
	sw.Pause()
	sw.Pause()
	clock.advance(time.Second)

	assert.Equal(t, time.Second, sw.Elapsed())
}

func TestStopwatch_ResumeWhenRunningIsNoop(t *testing.T) {
	clock := newFakeClock()
	sw := NewWithClock(clock.now)

	clock.advance(4 * time.Second)
	sw.Resume() // must not reset the reference point
	clock.advance(1 * time.Second)

	assert.Equal(t, 5*time.Second, sw.Elapsed())
}

func TestStopwatch_ManyCycles(t *testing.T) {
	clock := newFakeClock()
	sw := NewWithClock(clock.now)

	var want time.Duration
	for i := 0; i < 10; i++ {
		clock.advance(time.Second)
		want += time.Second
		sw.Pause()
		clock.advance(time.Minute)
		sw.Resume()
	}

	assert.Equal(t, want, sw.Elapsed())
}
