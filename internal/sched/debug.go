package sched

import (
	"time"

	"github.com/emirpasic/gods/queues/circularbuffer"
	"golang.org/x/time/rate"

	"coopsched/internal/logx"
)

const (
	DefaultDebugFlush = 5 * time.Second
	debugBufferSize   = 64
)

// debugRecord is one execution of a task with debugging enabled.
type debugRecord struct {
	index    int
	name     string
	priority int
	exec     time.Duration
	total    time.Duration
	max      time.Duration
	avg      time.Duration
	cpu      float64 // this task's share of uptime, percent
	missed   bool
}

// debugLog buffers records in a ring (oldest dropped first) and writes them
// out in bursts, at most once per flush interval of scheduler time.
type debugLog struct {
	buf     *circularbuffer.Queue
	limiter *rate.Limiter
}

func newDebugLog(every time.Duration) *debugLog {
	if every <= 0 {
		every = DefaultDebugFlush
	}
	return &debugLog{
		buf:     circularbuffer.New(debugBufferSize),
		limiter: rate.NewLimiter(rate.Every(every), 1),
	}
}

func (d *debugLog) record(rec debugRecord) {
	d.buf.Enqueue(rec)
}

func (d *debugLog) pending() int {
	return d.buf.Size()
}

func (d *debugLog) flush(now time.Time, log logx.Logger) int {
	if d.buf.Empty() || !d.limiter.AllowN(now, 1) {
		return 0
	}

	n := 0
	for {
		v, ok := d.buf.Dequeue()
		if !ok {
			break
		}
		rec := v.(debugRecord)
		log.Debug("task debug",
			logx.Int("task", rec.index),
			logx.String("name", rec.name),
			logx.Int("prio", rec.priority),
			logx.Duration("exec", rec.exec),
			logx.Duration("total", rec.total),
			logx.Duration("max", rec.max),
			logx.Duration("avg", rec.avg),
			logx.Float64("cpu_pct", rec.cpu),
			logx.Bool("deadline_missed", rec.missed),
		)
		n++
	}
	return n
}
