// Package terminal implements the operator console: a line-oriented command
// dispatcher that runs as an ordinary scheduled task.
package terminal

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/emirpasic/gods/queues/circularbuffer"

	"coopsched/internal/logx"
	"coopsched/internal/sched"
)

const (
	DefaultQueueSize   = 16
	DefaultHistorySize = 10
	maxLineLength      = 256
)

// Handler runs one command. args[0] is the upper-cased command name.
type Handler func(t *Terminal, args []string)

type command struct {
	name        string
	description string
	run         Handler
}

// Terminal reads commands queued by Feed or Submit and executes them when
// its task body (Poll) gets scheduled.
type Terminal struct {
	s   *sched.Scheduler
	out io.Writer
	log logx.Logger

	lines    chan string
	commands map[string]command
	history  *circularbuffer.Queue
}

type Option func(*Terminal)

func WithLogger(log logx.Logger) Option {
	return func(t *Terminal) {
		t.log = log
	}
}

// WithQueueSize bounds how many unread lines may be pending.
func WithQueueSize(n int) Option {
	return func(t *Terminal) {
		if n > 0 {
			t.lines = make(chan string, n)
		}
	}
}

func New(s *sched.Scheduler, out io.Writer, opts ...Option) *Terminal {
	t := &Terminal{
		s:        s,
		out:      out,
		log:      logx.Nop(),
		lines:    make(chan string, DefaultQueueSize),
		commands: make(map[string]command),
		history:  circularbuffer.New(DefaultHistorySize),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.registerBuiltins()
	return t
}

// Register adds or replaces a command.
func (t *Terminal) Register(name, description string, run Handler) {
	name = strings.ToUpper(name)
	t.commands[name] = command{name: name, description: description, run: run}
}

// Submit queues a line without blocking. It reports false when the queue
// is full and the line was dropped.
func (t *Terminal) Submit(line string) bool {
	select {
	case t.lines <- line:
		return true
	default:
		t.log.Warn("terminal input dropped", logx.String("line", line))
		return false
	}
}

// Feed copies lines from r into the queue until r is exhausted or ctx is
// done. Lines longer than maxLineLength are cut. It blocks on a full queue
// and is meant to run on its own goroutine.
func (t *Terminal) Feed(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 2*maxLineLength), 2*maxLineLength)
	sc.Split(truncatedLines(maxLineLength))
	for sc.Scan() {
		select {
		case t.lines <- sc.Text():
		case <-ctx.Done():
			return nil
		}
	}
	return sc.Err()
}

// truncatedLines splits like bufio.ScanLines but yields at most max bytes of
// each line and skips the rest up to the next newline.
func truncatedLines(max int) bufio.SplitFunc {
	discarding := false
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			if discarding {
				discarding = false
				return i + 1, nil, nil
			}
			return i + 1, clip(data[:i], max), nil
		}
		if discarding {
			return len(data), nil, nil
		}
		if len(data) >= max {
			discarding = true
			return len(data), data[:max], nil
		}
		if atEOF {
			return len(data), clip(data, max), nil
		}
		return 0, nil, nil
	}
}

func clip(line []byte, max int) []byte {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(line) > max {
		line = line[:max]
	}
	return line
}

// Poll executes every queued line. It never blocks, so it can be the body of
// a scheduled task.
func (t *Terminal) Poll() {
	for {
		select {
		case line := <-t.lines:
			t.Exec(line)
		default:
			return
		}
	}
}

// Exec parses and runs one command line.
func (t *Terminal) Exec(line string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}
	args[0] = strings.ToUpper(args[0])

	cmd, ok := t.commands[args[0]]
	if !ok {
		t.errorf("Unknown command %q. Use HELP to see options.", args[0])
		return
	}
	if args[0] != "HISTORY" {
		t.remember(strings.Join(args, " "))
	}
	t.log.Debug("terminal command", logx.String("cmd", args[0]), logx.Int("argc", len(args)))
	cmd.run(t, args)
}

func (t *Terminal) remember(line string) {
	if t.history.Full() {
		t.history.Dequeue()
	}
	t.history.Enqueue(line)
}

// Printf writes a system message to the console.
func (t *Terminal) Printf(format string, a ...any) {
	fmt.Fprintf(t.out, "[SYSTEM] "+format+"\n", a...)
}

func (t *Terminal) errorf(format string, a ...any) {
	fmt.Fprintf(t.out, "[SYSTEM][ERROR] "+format+"\n", a...)
}

// fail reports err in operator terms.
func (t *Terminal) fail(err error) {
	switch sched.CodeOf(err) {
	case sched.CodeInvalidIndex:
		t.errorf("Invalid task ID.")
	case sched.CodeInvalidParams:
		t.errorf("Invalid parameters.")
	case sched.CodeCapacityFull:
		t.errorf("Task table full.")
	default:
		t.errorf("%v", err)
	}
}

func (t *Terminal) names() []string {
	names := make([]string, 0, len(t.commands))
	for name := range t.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
