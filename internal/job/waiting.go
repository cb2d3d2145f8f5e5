package job

import (
	"time"

	"coopsched/internal/sched"
)

// SleepWork returns a task body that occupies the loop for d on clock.
// Under a ManualClock the sleep just advances time, which makes execution
// times exact in tests.
func SleepWork(clock sched.Clock, d time.Duration) func() {
	if d < 0 {
		d = 0
	}
	return func() {
		clock.Sleep(d)
	}
}
