package job

import "sync/atomic"

// LED is a simulated status light.
type LED struct {
	on      atomic.Bool
	toggles atomic.Uint64
	out     func(on bool)
}

// NewLED creates an LED that reports every state change to out (may be nil).
func NewLED(out func(on bool)) *LED {
	return &LED{out: out}
}

// Toggle flips the light. It is the body of the blink task.
func (l *LED) Toggle() {
	on := !l.on.Load()
	l.on.Store(on)
	l.toggles.Add(1)
	if l.out != nil {
		l.out(on)
	}
}

func (l *LED) On() bool        { return l.on.Load() }
func (l *LED) Toggles() uint64 { return l.toggles.Load() }
