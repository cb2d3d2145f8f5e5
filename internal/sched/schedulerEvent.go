// internal/sched/schedulerEvent.go

package sched

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"coopsched/internal/logx"
)

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusEnqueue
	StatusDispatch
	StatusDeadlineMiss
	StatusPause
	StatusResume
	StatusPriorityUpdate
	StatusIntervalUpdate
	StatusAlgorithmSwitch
)

// StatusEvent is emitted on every tick and on administrative actions.
type StatusEvent struct {
	Time      time.Time
	Tick      uint64
	Kind      StatusKind
	Task      int // -1 when the event is not about one task
	Name      string
	Priority  int
	ExecTime  time.Duration
	Jitter    time.Duration
	Algorithm Algorithm
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusEnqueue:
		return "Enqueued"
	case StatusDispatch:
		return "Dispatch"
	case StatusDeadlineMiss:
		return "DeadlineMiss"
	case StatusPause:
		return "Pause"
	case StatusResume:
		return "Resume"
	case StatusPriorityUpdate:
		return "PriorityUpdate"
	case StatusIntervalUpdate:
		return "IntervalUpdate"
	case StatusAlgorithmSwitch:
		return "AlgorithmSwitch"
	default:
		return "Unknown"
	}
}

// Observe registers fn to receive every status event. Observers run
// synchronously in the loop context and must return quickly.
func (s *Scheduler) Observe(fn func(StatusEvent)) {
	if fn != nil {
		s.observers = append(s.observers, fn)
	}
}

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before Run().
func (s *Scheduler) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"timestamp", "tick", "event", "task", "name", "priority", "exec_us", "jitter_us", "algorithm"}); err != nil {
		_ = f.Close()
		return err
	}
	w.Flush()
	s.csvFile = f
	s.csvWriter = w
	return nil
}

// Close flushes and closes the CSV event log, if any.
func (s *Scheduler) Close() error {
	if s.csvFile == nil {
		return nil
	}
	s.csvWriter.Flush()
	err := s.csvWriter.Error()
	if cerr := s.csvFile.Close(); err == nil {
		err = cerr
	}
	s.csvFile, s.csvWriter = nil, nil
	return err
}

func (s *Scheduler) emit(ev StatusEvent) {
	ev.Time = s.clock.Now()
	ev.Tick = s.ticks.Load()
	ev.Algorithm = s.algorithm

	for _, fn := range s.observers {
		fn(ev)
	}
	s.handleEvent(ev)
}

func (s *Scheduler) handleEvent(ev StatusEvent) {
	// idle ticks happen every loop pass; keep them out of the file
	if ev.Kind == StatusIdle || s.csvWriter == nil {
		return
	}

	rec := []string{
		ev.Time.Format(time.RFC3339Nano),
		strconv.FormatUint(ev.Tick, 10),
		ev.Kind.String(),
		strconv.Itoa(ev.Task),
		ev.Name,
		strconv.Itoa(ev.Priority),
		strconv.FormatInt(ev.ExecTime.Microseconds(), 10),
		strconv.FormatInt(ev.Jitter.Microseconds(), 10),
		ev.Algorithm.String(),
	}
	if err := s.csvWriter.Write(rec); err != nil {
		s.log.Warn("csv event log write failed", logx.Err(err))
		return
	}
	s.csvWriter.Flush()
}
