package sched

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// Stats is a read-only copy of one task's descriptor and counters.
type Stats struct {
	Index           int
	Name            string
	State           State
	Priority        int
	DynamicPriority int
	Interval        time.Duration
	LastExecution   time.Time
	Debug           bool

	ExecCount     uint64
	TotalTime     time.Duration
	TotalExecTime time.Duration
	MaxExecTime   time.Duration
	MinExecTime   time.Duration // zero until the first run
	AvgExecTime   time.Duration

	TotalJitter    time.Duration
	MaxJitter      time.Duration
	AvgJitter      time.Duration
	DeadlineMisses uint64

	MemoryAllocated int
	StackUsed       int
}

// MemoryUsed is the estimated scratch usage plus the declared footprint.
func (st Stats) MemoryUsed() int {
	return st.StackUsed + st.MemoryAllocated
}

// Report is a snapshot of the whole scheduler.
type Report struct {
	Algorithm   Algorithm
	Selecting   bool
	Uptime      time.Duration
	Ticks       uint64
	ExecTime    time.Duration
	CPUUsage    float64 // percent of uptime spent inside task functions
	MemoryUsed  int
	TotalMemory int
	Tasks       []Stats
}

func (r Report) MemoryUsage() float64 {
	if r.TotalMemory <= 0 {
		return 0
	}
	return float64(r.MemoryUsed) / float64(r.TotalMemory) * 100
}

// Stats returns the statistics of task i.
func (s *Scheduler) Stats(i int) (Stats, error) {
	t, err := s.task(i)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return t.stats(i), nil
}

func (t *Task) stats(i int) Stats {
	c := t.counters
	st := Stats{
		Index:           i,
		Name:            t.name,
		State:           t.state,
		Priority:        t.staticPriority,
		DynamicPriority: t.dynamicPriority,
		Interval:        t.interval,
		LastExecution:   t.lastExecution,
		Debug:           t.debug,
		ExecCount:       c.execCount,
		TotalTime:       c.totalTime,
		TotalExecTime:   c.totalExecTime,
		MaxExecTime:     c.maxExecTime,
		TotalJitter:     c.totalJitter,
		MaxJitter:       c.maxJitter,
		DeadlineMisses:  c.deadlineMisses,
		MemoryAllocated: t.memoryAllocated,
		StackUsed:       stackHighWater(t.scratch[:]),
	}
	if c.execCount > 0 {
		st.MinExecTime = c.minExecTime
		st.AvgExecTime = c.totalExecTime / time.Duration(c.execCount)
		st.AvgJitter = c.totalJitter / time.Duration(c.execCount)
	}
	return st
}

// Report collects every task's statistics plus CPU and memory usage.
func (s *Scheduler) Report() Report {
	now := s.clock.Now()
	r := Report{
		Algorithm:   s.algorithm,
		Selecting:   s.algorithm.Valid(),
		Uptime:      now.Sub(s.bootAt),
		Ticks:       s.ticks.Load(),
		ExecTime:    s.execTime,
		CPUUsage:    s.cpuUsage(now),
		TotalMemory: s.totalMemory,
		Tasks:       make([]Stats, 0, s.count),
	}
	for i := 0; i < s.count; i++ {
		st := s.tasks[i].stats(i)
		r.MemoryUsed += st.MemoryUsed()
		r.Tasks = append(r.Tasks, st)
	}
	return r
}

// WriteReport renders r as the task list shown on the terminal.
func WriteReport(w io.Writer, r Report) error {
	alg := r.Algorithm.String()
	if !r.Selecting {
		alg += " (no algorithm selected, idling)"
	}

	lines := []string{
		fmt.Sprintf("Algorithm: %s  Uptime: %s  Ticks: %d\n", alg, r.Uptime.Truncate(time.Millisecond), r.Ticks),
		fmt.Sprintf("%-3s %-16s %-8s %5s %8s %10s %10s %10s %10s %10s %10s %6s %10s\n",
			"ID", "NAME", "STATE", "PRIO", "RUNS", "TOTAL", "MIN", "MAX", "AVG", "MAXJIT", "AVGJIT", "MISS", "MEM"),
	}
	for _, st := range r.Tasks {
		lines = append(lines, fmt.Sprintf("%-3d %-16s %-8s %5d %8d %10s %10s %10s %10s %10s %10s %6d %10s\n",
			st.Index,
			truncate(st.Name, 16),
			st.State,
			st.Priority,
			st.ExecCount,
			micros(st.TotalExecTime),
			minExec(st),
			micros(st.MaxExecTime),
			micros(st.AvgExecTime),
			micros(st.MaxJitter),
			micros(st.AvgJitter),
			st.DeadlineMisses,
			humanize.IBytes(uint64(st.MemoryUsed())),
		))
	}
	lines = append(lines,
		fmt.Sprintf("CPU usage: %.2f%% (free %.2f%%)\n", r.CPUUsage, 100-r.CPUUsage),
		fmt.Sprintf("Memory: %s of %s (%.2f%%)\n",
			humanize.IBytes(uint64(r.MemoryUsed)), humanize.IBytes(uint64(r.TotalMemory)), r.MemoryUsage()),
	)

	for _, line := range lines {
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

func micros(d time.Duration) string {
	return fmt.Sprintf("%dus", d.Microseconds())
}

func minExec(st Stats) string {
	if st.ExecCount == 0 {
		return "-"
	}
	return micros(st.MinExecTime)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
