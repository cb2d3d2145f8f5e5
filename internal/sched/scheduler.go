// internal/sched/scheduler.go

package sched

import (
	"context"
	"encoding/csv"
	"os"
	"sync/atomic"
	"time"

	"coopsched/internal/logx"
)

const (
	DefaultIdleSleep   = time.Millisecond
	DefaultTotalMemory = 256 * 1024

	mailboxSize = 32
)

// Scheduler is a cooperative, single-context task scheduler. It owns the task
// registry; only the loop and code it runs (task bodies, posted functions)
// may mutate it. Other goroutines go through Post.
type Scheduler struct {
	// configuration
	clock          Clock
	log            logx.Logger
	idleSleep      time.Duration
	normalizeEvery int
	totalMemory    int

	// registry
	tasks [MaxTasks]Task
	count int

	// selection
	algorithm  Algorithm
	policy     policy
	pending    Algorithm
	hasPending bool
	running    int // index of the task being executed, none between runs

	// accounting
	bootAt   time.Time
	execTime time.Duration // all task executions, summed
	ticks    atomic.Uint64

	// loop ownership
	looping atomic.Bool // Run is active
	inLoop  atomic.Bool // a Step is in progress
	mailbox chan func(*Scheduler)

	debug     *debugLog
	observers []func(StatusEvent)

	// logging-related
	csvFile   *os.File
	csvWriter *csv.Writer
}

type Option = func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(log logx.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

func WithAlgorithm(a Algorithm) Option {
	return func(s *Scheduler) {
		s.algorithm = a
	}
}

func WithIdleSleep(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.idleSleep = d
		}
	}
}

// WithNormalizeEvery sets the renormalization period of the priority policy.
// Values <= 0 disable renormalization.
func WithNormalizeEvery(n int) Option {
	return func(s *Scheduler) {
		s.normalizeEvery = n
	}
}

// WithTotalMemory sets the platform memory the report measures usage against.
func WithTotalMemory(bytes int) Option {
	return func(s *Scheduler) {
		if bytes > 0 {
			s.totalMemory = bytes
		}
	}
}

func WithDebugFlush(every time.Duration) Option {
	return func(s *Scheduler) {
		s.debug = newDebugLog(every)
	}
}

// New creates a Scheduler with an empty registry.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:          SystemClock{},
		log:            logx.Nop(),
		idleSleep:      DefaultIdleSleep,
		normalizeEvery: DefaultNormalizeEvery,
		totalMemory:    DefaultTotalMemory,
		algorithm:      AlgorithmPriority,
		running:        none,
		mailbox:        make(chan func(*Scheduler), mailboxSize),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.debug == nil {
		s.debug = newDebugLog(DefaultDebugFlush)
	}
	s.policy = newPolicy(s.algorithm, s.normalizeEvery)
	s.bootAt = s.clock.Now()
	return s
}

// Run drives the loop until ctx is cancelled. A task that never returns
// stalls it for good: there is no preemption.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.looping.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.looping.Store(false)

	s.log.Info("scheduler started",
		logx.String("algorithm", s.algorithm.String()),
		logx.Int("tasks", s.count),
	)
	if !s.algorithm.Valid() {
		s.log.Warn("no scheduling algorithm selected, loop will idle", logx.Int("algorithm", int(s.algorithm)))
	}

	for {
		// 1) check shutdown
		if ctx.Err() != nil {
			s.log.Info("scheduler stopped", logx.Uint64("ticks", s.ticks.Load()))
			if s.csvWriter != nil {
				s.csvWriter.Flush()
			}
			return nil
		}

		// 2) one tick, then idle if nothing was eligible
		if s.Step() == none {
			s.clock.Sleep(s.idleSleep)
		}
	}
}

// Step performs one selection pass and runs the selected task, if any. It
// returns the executed index, or -1 when the loop should idle.
func (s *Scheduler) Step() int {
	s.inLoop.Store(true)
	defer s.inLoop.Store(false)

	s.drainMailbox()
	s.ticks.Add(1)

	now := s.clock.Now()
	i := s.policy.pick(now, s.tasks[:s.count])
	if i == none {
		s.emit(StatusEvent{Kind: StatusIdle, Task: none})
		s.debug.flush(now, s.log)
		return none
	}

	s.dispatch(i, now)

	if s.hasPending {
		s.hasPending = false
		s.switchAlgorithm(s.pending)
	}
	s.debug.flush(s.clock.Now(), s.log)
	return i
}

// Post queues fn to run inside the loop at the start of the next tick. It is
// the only safe way to reach the scheduler from another goroutine while Run
// is active.
func (s *Scheduler) Post(fn func(*Scheduler)) error {
	if fn == nil {
		return ErrInvalidParams
	}
	select {
	case s.mailbox <- fn:
		return nil
	default:
		return ErrMailboxFull
	}
}

// drainMailbox runs what was queued when the tick began. Functions posted
// while draining wait for the next tick.
func (s *Scheduler) drainMailbox() {
	for n := len(s.mailbox); n > 0; n-- {
		select {
		case fn := <-s.mailbox:
			fn(s)
		default:
			return
		}
	}
}

func (s *Scheduler) dispatch(i int, now time.Time) {
	t := &s.tasks[i]

	elapsed := now.Sub(t.lastExecution)
	jitter := elapsed - t.interval
	if jitter < 0 {
		jitter = -jitter
	}
	t.counters.totalJitter += jitter
	if jitter > t.counters.maxJitter {
		t.counters.maxJitter = jitter
	}

	// late by more than a whole interval past the expected start
	missed := elapsed-t.interval > t.interval
	if missed {
		t.counters.deadlineMisses++
	}

	s.running = i
	start := s.clock.Now()
	t.fn()
	end := s.clock.Now()
	s.running = none
	exec := end.Sub(start)

	t.lastExecution = now
	t.dynamicPriority = t.staticPriority
	c := &t.counters
	c.execCount++
	c.totalTime += end.Sub(now)
	c.totalExecTime += exec
	if exec > c.maxExecTime {
		c.maxExecTime = exec
	}
	if exec < c.minExecTime {
		c.minExecTime = exec
	}
	s.execTime += exec

	if missed {
		s.log.Debug("deadline missed",
			logx.Int("task", i),
			logx.String("name", t.name),
			logx.Duration("late", elapsed-t.interval),
		)
		s.emit(StatusEvent{Kind: StatusDeadlineMiss, Task: i, Name: t.name, Priority: t.staticPriority, Jitter: jitter})
	}

	if t.debug {
		s.debug.record(debugRecord{
			index:    i,
			name:     t.name,
			priority: t.staticPriority,
			exec:     exec,
			total:    c.totalExecTime,
			max:      c.maxExecTime,
			avg:      c.totalExecTime / time.Duration(c.execCount),
			cpu:      s.share(c.totalExecTime, end),
			missed:   missed,
		})
	}

	s.emit(StatusEvent{
		Kind:     StatusDispatch,
		Task:     i,
		Name:     t.name,
		Priority: t.staticPriority,
		ExecTime: exec,
		Jitter:   jitter,
	})
}

// Ticks returns the number of selection passes so far.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// Algorithm returns the installed algorithm. Selecting reports whether it
// is one of the known policies; when it is not, the loop idles forever.
func (s *Scheduler) Algorithm() (a Algorithm, selecting bool) {
	return s.algorithm, s.algorithm.Valid()
}

func (s *Scheduler) cpuUsage(now time.Time) float64 {
	return s.share(s.execTime, now)
}

// share is d as a percentage of the uptime at now.
func (s *Scheduler) share(d time.Duration, now time.Time) float64 {
	up := now.Sub(s.bootAt)
	if up <= 0 {
		return 0
	}
	return float64(d) / float64(up) * 100
}
