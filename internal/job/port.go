package job

import (
	"sync"

	"github.com/emirpasic/gods/queues/circularbuffer"
)

const DefaultPortSize = 128

// Port is a bounded byte FIFO standing in for a serial peripheral's receive
// buffer. Writers may live on any goroutine; bytes that do not fit are
// dropped and counted.
type Port struct {
	name string

	mu      sync.Mutex
	buf     *circularbuffer.Queue
	dropped uint64
}

func NewPort(name string, size int) *Port {
	if size <= 0 {
		size = DefaultPortSize
	}
	return &Port{name: name, buf: circularbuffer.New(size)}
}

func (p *Port) Name() string { return p.name }

// Write queues b and returns how many bytes were accepted.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, c := range b {
		if p.buf.Full() {
			p.dropped += uint64(len(b) - n)
			break
		}
		p.buf.Enqueue(c)
		n++
	}
	return n, nil
}

// ReadByte pops the oldest queued byte; ok is false when the port is empty.
func (p *Port) ReadByte() (c byte, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.buf.Dequeue()
	if !ok {
		return 0, false
	}
	return v.(byte), true
}

// Len returns the number of queued bytes.
func (p *Port) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Size()
}

func (p *Port) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Bridge returns a task body that moves up to burst bytes from one port to
// the other per run.
func Bridge(from, to *Port, burst int) func() {
	if burst <= 0 {
		burst = 1
	}
	return func() {
		for n := 0; n < burst; n++ {
			c, ok := from.ReadByte()
			if !ok {
				return
			}
			_, _ = to.Write([]byte{c})
		}
	}
}
