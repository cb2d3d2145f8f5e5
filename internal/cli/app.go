package cli

import (
	"fmt"
	"io"
	"time"

	"coopsched/internal/config"
	"coopsched/internal/job"
	"coopsched/internal/logx"
	"coopsched/internal/sched"
	"coopsched/internal/terminal"
)

// demo task names, also the keys of the config "tasks" table
const (
	taskLED      = "led"
	taskBridge   = "uart bridge"
	taskWork     = "work"
	taskTerminal = "terminal"
)

const (
	bridgeBurst = 16
	workLength  = 200 * time.Microsecond
)

type demoTask struct {
	name string
	fn   func()
	def  config.TaskConfig
}

// app is the scheduler plus everything it runs.
type app struct {
	s    *sched.Scheduler
	log  logx.Logger
	term *terminal.Terminal

	led          *job.LED
	uart1, uart2 *job.Port

	ids map[string]int
}

func newApp(cfg config.Config, log logx.Logger, out io.Writer, opts ...sched.Option) (*app, error) {
	opts = append(cfg.SchedulerOptions(), append(opts, sched.WithLogger(log))...)
	s := sched.New(opts...)
	if cfg.CSVLog != "" {
		if err := s.EnableCSVLogging(cfg.CSVLog); err != nil {
			return nil, fmt.Errorf("csv log: %w", err)
		}
	}

	a := &app{
		s:     s,
		log:   log,
		term:  terminal.New(s, out, terminal.WithLogger(log)),
		uart1: job.NewPort("uart1", job.DefaultPortSize),
		uart2: job.NewPort("uart2", job.DefaultPortSize),
		ids:   make(map[string]int),
	}
	// the LED echoes its state onto uart1, the bridge carries it to uart2
	a.led = job.NewLED(func(on bool) {
		c := byte('0')
		if on {
			c = '1'
		}
		_, _ = a.uart1.Write([]byte{c})
	})

	tasks := []demoTask{
		{name: taskLED, fn: a.led.Toggle, def: config.TaskConfig{Priority: 2, Interval: "500ms"}},
		{name: taskBridge, fn: job.Bridge(a.uart1, a.uart2, bridgeBurst), def: config.TaskConfig{Priority: 1, Interval: "1ms", Memory: 2048}},
		{name: taskWork, fn: job.SleepWork(sched.SystemClock{}, workLength), def: config.TaskConfig{Priority: 0, Interval: "100ms", Memory: 1024}},
		{name: taskTerminal, fn: a.term.Poll, def: config.TaskConfig{Priority: 3, Interval: "10ms", Memory: 4096}},
	}
	for _, t := range tasks {
		if err := a.register(cfg, t); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) register(cfg config.Config, t demoTask) error {
	tc := cfg.Task(t.name, t.def)
	state := sched.StateRunning
	if tc.Paused {
		state = sched.StatePaused
	}
	def, err := config.ParseDurationField("interval", t.def.Interval)
	if err != nil {
		return fmt.Errorf("register %s: %w", t.name, err)
	}

	i, err := a.s.AddTask(t.name, t.fn, tc.Priority, tc.IntervalOr(def), state, tc.Memory)
	if err != nil {
		return fmt.Errorf("register %s: %w", t.name, err)
	}
	if tc.Debug {
		if err := a.s.SetDebug(i, true); err != nil {
			return fmt.Errorf("register %s: %w", t.name, err)
		}
	}
	a.ids[t.name] = i
	return nil
}

// applyConfig pushes a reloaded config into the running scheduler. It must
// run in loop context (posted through Scheduler.Post).
func (a *app) applyConfig(cfg config.Config) {
	if want := cfg.SchedulerAlgorithm(); want.Valid() {
		if cur, _ := a.s.Algorithm(); cur != want {
			if err := a.s.SetAlgorithm(want); err != nil {
				a.log.Warn("config apply failed", logx.String("field", "algorithm"), logx.Err(err))
			}
		}
	}

	for name, i := range a.ids {
		tc, ok := cfg.Tasks[name]
		if !ok {
			continue
		}
		st, err := a.s.Stats(i)
		if err != nil {
			continue
		}
		if tc.Priority != st.Priority {
			if err := a.s.SetPriority(i, tc.Priority); err != nil {
				a.log.Warn("config apply failed", logx.String("task", name), logx.Err(err))
			}
		}
		if d := tc.IntervalOr(st.Interval); d != st.Interval {
			if err := a.s.SetInterval(i, d); err != nil {
				a.log.Warn("config apply failed", logx.String("task", name), logx.Err(err))
			}
		}
	}
}
