package sched

import (
	"math"
	"time"
)

// MaxTasks is the fixed capacity of the task registry.
const MaxTasks = 10

// neverRan is the min execution time of a task that has not run yet.
const neverRan = time.Duration(math.MaxInt64)

// State is the run state of a registered task.
type State int

const (
	StateRunning State = iota
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// Task is one slot of the registry. Its index never changes once assigned.
type Task struct {
	name            string
	fn              func() // run-to-completion work, must not block
	staticPriority  int    // set by the operator
	dynamicPriority int    // aged by the priority policy, reset after every run
	interval        time.Duration
	state           State
	lastExecution   time.Time
	memoryAllocated int // declared, not measured
	debug           bool

	counters counters
	scratch  [StackSize]byte
}

type counters struct {
	execCount      uint64
	totalTime      time.Duration // selection to return, summed
	totalExecTime  time.Duration // task function only, summed
	maxExecTime    time.Duration
	minExecTime    time.Duration
	totalJitter    time.Duration
	maxJitter      time.Duration
	deadlineMisses uint64
}

func (t *Task) resetCounters() {
	t.counters = counters{minExecTime: neverRan}
}

// ready reports whether the task is running and its interval has elapsed.
func (t *Task) ready(now time.Time) bool {
	return t.state == StateRunning && now.Sub(t.lastExecution) >= t.interval
}

func (t *Task) waited(now time.Time) time.Duration {
	return now.Sub(t.lastExecution)
}

func (t *Task) deadline() time.Time {
	return t.lastExecution.Add(t.interval)
}
