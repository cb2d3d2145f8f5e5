package terminal

import (
	"strconv"
	"strings"
	"time"

	"coopsched/internal/sched"
)

func (t *Terminal) registerBuiltins() {
	t.Register("HELP", "Show the list of commands", cmdHelp)
	t.Register("HISTORY", "Display command history", cmdHistory)
	t.Register("PS", "Display tasks", cmdPS)
	t.Register("TASK", "Manage tasks (PS, PRIO <id> <p>, HOLD <id>, RUN <id>, IVL <id> <dur>)", cmdTask)
	t.Register("ALG", "Change scheduler algorithm (e.g., ALG RR)", cmdAlgorithm)
	t.Register("DBG", "Enable/disable debug for a task (e.g., DBG <id> EN or DI)", cmdDebug)
	t.Register("STATS", "Show statistics of one task (e.g., STATS <id>)", cmdStats)
}

func cmdHelp(t *Terminal, _ []string) {
	t.Printf("Available commands:")
	for _, name := range t.names() {
		t.Printf(" - %s: %s", name, t.commands[name].description)
	}
}

func cmdHistory(t *Terminal, _ []string) {
	for i, v := range t.history.Values() {
		t.Printf("%2d  %s", i+1, v.(string))
	}
}

func cmdPS(t *Terminal, _ []string) {
	if err := sched.WriteReport(t.out, t.s.Report()); err != nil {
		t.fail(err)
	}
}

func cmdTask(t *Terminal, args []string) {
	if len(args) < 2 {
		t.errorf("Specify subcommand (PS, PRIO, HOLD, RUN, IVL).")
		return
	}

	switch strings.ToUpper(args[1]) {
	case "PS":
		cmdPS(t, args)
	case "PRIO":
		if len(args) < 4 {
			t.errorf("Specify task ID and new priority.")
			return
		}
		id, ok := t.taskID(args[2])
		if !ok {
			return
		}
		prio, err := strconv.Atoi(args[3])
		if err != nil {
			t.errorf("Invalid priority %q.", args[3])
			return
		}
		if err := t.s.SetPriority(id, prio); err != nil {
			t.fail(err)
			return
		}
		t.Printf("Priority updated.")
	case "HOLD":
		if len(args) < 3 {
			t.errorf("Specify task ID.")
			return
		}
		id, ok := t.taskID(args[2])
		if !ok {
			return
		}
		if err := t.s.Pause(id); err != nil {
			t.fail(err)
			return
		}
		t.Printf("Task paused.")
	case "RUN":
		if len(args) < 3 {
			t.errorf("Specify task ID.")
			return
		}
		id, ok := t.taskID(args[2])
		if !ok {
			return
		}
		if err := t.s.Resume(id); err != nil {
			t.fail(err)
			return
		}
		t.Printf("Task resumed.")
	case "IVL":
		if len(args) < 4 {
			t.errorf("Specify task ID and new interval.")
			return
		}
		id, ok := t.taskID(args[2])
		if !ok {
			return
		}
		d, err := parseInterval(args[3])
		if err != nil {
			t.errorf("Invalid interval %q.", args[3])
			return
		}
		if err := t.s.SetInterval(id, d); err != nil {
			t.fail(err)
			return
		}
		t.Printf("Interval updated.")
	default:
		t.errorf("Unknown subcommand.")
	}
}

func cmdAlgorithm(t *Terminal, args []string) {
	if len(args) < 2 {
		cur, selecting := t.s.Algorithm()
		if !selecting {
			t.Printf("Algorithm: %s (no algorithm selected, idling)", cur)
		} else {
			t.Printf("Algorithm: %s", cur)
		}
		t.Printf("Available: %s", strings.Join(algorithmNames(), ", "))
		return
	}

	a, err := sched.ParseAlgorithm(args[1])
	if err != nil {
		t.errorf("Invalid algorithm. Use one of: %s.", strings.Join(algorithmNames(), ", "))
		return
	}
	if err := t.s.SetAlgorithm(a); err != nil {
		t.fail(err)
		return
	}
	t.Printf("Scheduler algorithm updated.")
}

func cmdDebug(t *Terminal, args []string) {
	if len(args) < 3 {
		t.errorf("Specify task ID and state (EN or DI).")
		return
	}
	id, ok := t.taskID(args[1])
	if !ok {
		return
	}

	var enabled bool
	switch strings.ToUpper(args[2]) {
	case "EN":
		enabled = true
	case "DI":
	default:
		t.errorf("Invalid state. Use EN to enable or DI to disable.")
		return
	}
	if err := t.s.SetDebug(id, enabled); err != nil {
		t.fail(err)
		return
	}
	if enabled {
		t.Printf("Debug enabled for task %d.", id)
	} else {
		t.Printf("Debug disabled for task %d.", id)
	}
}

func cmdStats(t *Terminal, args []string) {
	if len(args) < 2 {
		t.errorf("Specify task ID.")
		return
	}
	id, ok := t.taskID(args[1])
	if !ok {
		return
	}
	st, err := t.s.Stats(id)
	if err != nil {
		t.fail(err)
		return
	}

	t.Printf("Task %d: %s (%s)", st.Index, st.Name, st.State)
	t.Printf("  priority %d (dynamic %d), interval %s", st.Priority, st.DynamicPriority, st.Interval)
	t.Printf("  runs %d, misses %d", st.ExecCount, st.DeadlineMisses)
	if st.ExecCount > 0 {
		t.Printf("  exec min %s / avg %s / max %s", st.MinExecTime, st.AvgExecTime, st.MaxExecTime)
		t.Printf("  jitter avg %s / max %s", st.AvgJitter, st.MaxJitter)
	}
	t.Printf("  memory %d bytes (stack %d, static %d)", st.MemoryUsed(), st.StackUsed, st.MemoryAllocated)
}

func (t *Terminal) taskID(arg string) (int, bool) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		t.errorf("Invalid task ID %q.", arg)
		return 0, false
	}
	return id, true
}

// parseInterval accepts Go durations ("250ms") and bare milliseconds ("250").
func parseInterval(s string) (time.Duration, error) {
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

func algorithmNames() []string {
	all := sched.Algorithms()
	names := make([]string, 0, len(all))
	for _, a := range all {
		names = append(names, a.String())
	}
	return names
}
