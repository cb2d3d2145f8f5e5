// internal/sched/clock.go

package sched

import (
	"sync"
	"time"
)

// Clock is the scheduler's time source. Now must be monotonic.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock reads the process clock. time.Now carries a monotonic reading,
// so differences between two Now values are immune to wall clock steps.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// ManualClock only moves when told to. Sleep advances it instead of blocking,
// which lets a whole Run loop be driven deterministically.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Sleep(d time.Duration) { c.Advance(d) }

// Advance moves the clock forward by d; negative values are ignored.
func (c *ManualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
