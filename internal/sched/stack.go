package sched

const (
	// StackSize is the size of every task's scratch buffer.
	StackSize = 256

	stackSentinel byte = 0xA5
)

func fillScratch(b []byte) {
	for i := range b {
		b[i] = stackSentinel
	}
}

// stackHighWater returns how many bytes of b were touched, assuming the
// buffer is used top-down like a descending stack: the first byte from the
// bottom that no longer holds the sentinel marks the deepest point reached.
func stackHighWater(b []byte) int {
	for i, v := range b {
		if v != stackSentinel {
			return len(b) - i
		}
	}
	return 0
}

// Scratch exposes the sentinel-filled buffer of task i. A task that wants its
// working memory accounted for uses this buffer from the top end down; the
// report then estimates usage from the high-water mark. Nothing routes the
// task's real call stack through it.
func (s *Scheduler) Scratch(i int) ([]byte, error) {
	t, err := s.task(i)
	if err != nil {
		return nil, err
	}
	return t.scratch[:], nil
}
