package sched

import (
	"fmt"
	"time"

	"coopsched/internal/logx"
)

// AddTask registers fn at the next free index and returns that index.
// interval is the minimum time between two runs; memory is the task's
// declared static footprint in bytes.
func (s *Scheduler) AddTask(name string, fn func(), priority int, interval time.Duration, state State, memory int) (int, error) {
	if err := s.checkContext(); err != nil {
		return none, err
	}
	if s.count == MaxTasks {
		return none, fmt.Errorf("add task %q: %w", name, ErrCapacityFull)
	}
	if fn == nil || interval <= 0 || memory < 0 || (state != StateRunning && state != StatePaused) {
		return none, fmt.Errorf("add task %q: %w", name, ErrInvalidParams)
	}

	i := s.count
	t := &s.tasks[i]
	*t = Task{
		name:            name,
		fn:              fn,
		staticPriority:  priority,
		dynamicPriority: priority,
		interval:        interval,
		state:           state,
		lastExecution:   s.clock.Now(),
		memoryAllocated: memory,
	}
	t.resetCounters()
	fillScratch(t.scratch[:])
	s.count++

	s.log.Info("task added",
		logx.Int("task", i),
		logx.String("name", name),
		logx.Int("prio", priority),
		logx.Duration("interval", interval),
		logx.String("state", state.String()),
	)
	s.emit(StatusEvent{Kind: StatusEnqueue, Task: i, Name: name, Priority: priority})
	return i, nil
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	return s.count
}

// SetPriority changes the static priority of task i; the dynamic priority
// restarts from the new value.
func (s *Scheduler) SetPriority(i, priority int) error {
	t, err := s.adminTask(i)
	if err != nil {
		return fmt.Errorf("set priority: %w", err)
	}
	t.staticPriority = priority
	t.dynamicPriority = priority
	s.emit(StatusEvent{Kind: StatusPriorityUpdate, Task: i, Name: t.name, Priority: priority})
	return nil
}

func (s *Scheduler) SetInterval(i int, interval time.Duration) error {
	t, err := s.adminTask(i)
	if err != nil {
		return fmt.Errorf("set interval: %w", err)
	}
	if interval <= 0 {
		return fmt.Errorf("set interval %s: %w", interval, ErrInvalidParams)
	}
	t.interval = interval
	s.emit(StatusEvent{Kind: StatusIntervalUpdate, Task: i, Name: t.name, Priority: t.staticPriority})
	return nil
}

// Pause stops task i from being selected, starting with the next tick.
func (s *Scheduler) Pause(i int) error {
	t, err := s.adminTask(i)
	if err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	s.setState(t, StatePaused)
	s.log.Info("task paused", logx.Int("task", i), logx.String("name", t.name))
	s.emit(StatusEvent{Kind: StatusPause, Task: i, Name: t.name, Priority: t.staticPriority})
	return nil
}

func (s *Scheduler) Resume(i int) error {
	t, err := s.adminTask(i)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	s.setState(t, StateRunning)
	s.log.Info("task resumed", logx.Int("task", i), logx.String("name", t.name))
	s.emit(StatusEvent{Kind: StatusResume, Task: i, Name: t.name, Priority: t.staticPriority})
	return nil
}

// setState also restamps the last execution so the time spent paused does
// not show up as jitter on the next run.
func (s *Scheduler) setState(t *Task, state State) {
	t.state = state
	t.counters.totalJitter = 0
	t.counters.maxJitter = 0
	t.lastExecution = s.clock.Now()
}

// SetDebug turns per-execution debug records on or off for task i.
func (s *Scheduler) SetDebug(i int, enabled bool) error {
	t, err := s.adminTask(i)
	if err != nil {
		return fmt.Errorf("set debug: %w", err)
	}
	t.debug = enabled
	s.log.Debug("task debug toggled", logx.Int("task", i), logx.Bool("enabled", enabled))
	return nil
}

// SetAlgorithm pauses every task, resets all statistics, resumes every task
// and installs a. Paused tasks come back running. Unknown values install a
// policy that never selects anything. Called from a task body, the switch
// happens once that task's run has been accounted for.
func (s *Scheduler) SetAlgorithm(a Algorithm) error {
	if err := s.checkContext(); err != nil {
		return err
	}
	if s.running != none {
		s.pending, s.hasPending = a, true
		return nil
	}
	s.switchAlgorithm(a)
	return nil
}

func (s *Scheduler) switchAlgorithm(a Algorithm) {
	now := s.clock.Now()
	live := s.tasks[:s.count]

	for i := range live {
		live[i].state = StatePaused
	}
	for i := range live {
		t := &live[i]
		t.resetCounters()
		t.dynamicPriority = t.staticPriority
		t.lastExecution = now
	}
	for i := range live {
		live[i].state = StateRunning
	}

	prev := s.algorithm
	s.algorithm = a
	s.policy = newPolicy(a, s.normalizeEvery)

	if a.Valid() {
		s.log.Info("scheduling algorithm changed", logx.String("from", prev.String()), logx.String("to", a.String()))
	} else {
		s.log.Warn("unknown scheduling algorithm, loop will idle", logx.Int("algorithm", int(a)))
	}
	s.emit(StatusEvent{Kind: StatusAlgorithmSwitch, Task: none})
}

func (s *Scheduler) adminTask(i int) (*Task, error) {
	if err := s.checkContext(); err != nil {
		return nil, err
	}
	return s.task(i)
}

func (s *Scheduler) task(i int) (*Task, error) {
	if i < 0 || i >= s.count {
		return nil, fmt.Errorf("task %d: %w", i, ErrInvalidIndex)
	}
	return &s.tasks[i], nil
}

// checkContext rejects mutations made from outside the loop while it runs.
// It catches the common mistake of calling in from a goroutine that sits
// between ticks; it is not a lock.
func (s *Scheduler) checkContext() error {
	if s.looping.Load() && !s.inLoop.Load() {
		return ErrNotLoopContext
	}
	return nil
}
