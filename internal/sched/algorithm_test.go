package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2000, 01, 01, 12, 15, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, opts ...Option) (*Scheduler, *ManualClock) {
	t.Helper()
	clock := NewManualClock(testEpoch)
	s := New(append([]Option{WithClock(clock)}, opts...)...)
	return s, clock
}

func noop() {}

func testAdd(t *testing.T, s *Scheduler, name string, priority int, interval time.Duration) int {
	t.Helper()
	i, err := s.AddTask(name, noop, priority, interval, StateRunning, 0)
	require.NoError(t, err)
	return i
}

func TestReadinessGating(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmPriority, AlgorithmRoundRobin, AlgorithmEarliestDeadlineFirst} {
		t.Run(alg.String(), func(t *testing.T) {
			s, clock := newTestScheduler(t, WithAlgorithm(alg))
			testAdd(t, s, "slow", 1, 100*time.Millisecond)

			assert.Equal(t, none, s.Step(), "not ready right after registration")

			clock.Advance(99 * time.Millisecond)
			assert.Equal(t, none, s.Step(), "1ms short of the interval")

			clock.Advance(time.Millisecond)
			assert.Equal(t, 0, s.Step())
			assert.Equal(t, none, s.Step(), "just ran")
		})
	}
}

func TestPriority_SelectsHighestAndAgesOthers(t *testing.T) {
	s, clock := newTestScheduler(t)
	high := testAdd(t, s, "high", 5, time.Millisecond)
	low := testAdd(t, s, "low", 1, time.Millisecond)

	clock.Advance(time.Millisecond)
	require.Equal(t, high, s.Step())

	assert.Equal(t, 5, s.tasks[high].dynamicPriority, "reset after execution")
	assert.Equal(t, 2, s.tasks[low].dynamicPriority, "aged by exactly one")
}

func TestPriority_TieGoesToFirstRegistered(t *testing.T) {
	s, clock := newTestScheduler(t)
	testAdd(t, s, "a", 3, time.Millisecond)
	testAdd(t, s, "b", 3, time.Millisecond)

	clock.Advance(time.Millisecond)
	assert.Equal(t, 0, s.Step())
}

func TestPriority_AgingIncludesIneligibleTasks(t *testing.T) {
	s, clock := newTestScheduler(t)
	testAdd(t, s, "ready", 1, time.Millisecond)
	slow := testAdd(t, s, "slow", 1, time.Hour)
	paused := testAdd(t, s, "paused", 1, time.Millisecond)
	require.NoError(t, s.Pause(paused))

	clock.Advance(time.Millisecond)
	require.Equal(t, 0, s.Step())
	assert.Equal(t, 2, s.tasks[slow].dynamicPriority)
	assert.Equal(t, 2, s.tasks[paused].dynamicPriority)

	// nothing selected: everybody ages
	assert.Equal(t, none, s.Step())
	assert.Equal(t, 2, s.tasks[0].dynamicPriority)
	assert.Equal(t, 3, s.tasks[slow].dynamicPriority)
}

func TestPriority_AntiStarvation(t *testing.T) {
	s, clock := newTestScheduler(t)
	testAdd(t, s, "hog", 10, time.Millisecond)
	low := testAdd(t, s, "starved", 1, time.Millisecond)

	selectedAt := -1
	for tick := 1; tick <= DefaultNormalizeEvery; tick++ {
		clock.Advance(time.Millisecond)
		if s.Step() == low {
			selectedAt = tick
			break
		}
	}

	// 1 + 10 ticks of aging are needed to strictly exceed 10
	assert.Equal(t, 11, selectedAt)
}

func TestPriority_Renormalization(t *testing.T) {
	s, _ := newTestScheduler(t, WithNormalizeEvery(3))
	i := testAdd(t, s, "idle", 0, time.Hour)

	s.Step()
	s.Step()
	assert.Equal(t, 2, s.tasks[i].dynamicPriority)

	// third cycle resets to the static value before aging again
	s.Step()
	assert.Equal(t, 1, s.tasks[i].dynamicPriority)
}

func TestRoundRobin_CyclicOrder(t *testing.T) {
	s, clock := newTestScheduler(t, WithAlgorithm(AlgorithmRoundRobin))
	for _, name := range []string{"a", "b", "c"} {
		testAdd(t, s, name, 0, time.Millisecond)
	}

	got := make([]int, 0, 6)
	for n := 0; n < 6; n++ {
		clock.Advance(time.Millisecond)
		got = append(got, s.Step())
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, got)
}

func TestRoundRobin_SkipsUnreadyAndResumesAfterLast(t *testing.T) {
	s, clock := newTestScheduler(t, WithAlgorithm(AlgorithmRoundRobin))
	testAdd(t, s, "fast", 0, time.Millisecond)
	testAdd(t, s, "slow", 0, time.Hour)
	testAdd(t, s, "fast2", 0, time.Millisecond)

	clock.Advance(time.Millisecond)
	assert.Equal(t, 0, s.Step())
	assert.Equal(t, 2, s.Step(), "slow is skipped")
	clock.Advance(time.Millisecond)
	assert.Equal(t, 0, s.Step(), "wraps around")
}

func TestEarliestDeadlineFirst(t *testing.T) {
	tests := []struct {
		name      string
		intervals []time.Duration
		advance   time.Duration
		want      int
	}{
		{
			name:      "shorter interval has the sooner deadline",
			intervals: []time.Duration{100 * time.Millisecond, 50 * time.Millisecond},
			advance:   100 * time.Millisecond,
			want:      1,
		},
		{
			name:      "tie goes to first registered",
			intervals: []time.Duration{50 * time.Millisecond, 50 * time.Millisecond},
			advance:   50 * time.Millisecond,
			want:      0,
		},
		{
			name:      "only one ready",
			intervals: []time.Duration{10 * time.Millisecond, time.Hour},
			advance:   10 * time.Millisecond,
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clock := newTestScheduler(t, WithAlgorithm(AlgorithmEarliestDeadlineFirst))
			for n, ivl := range tt.intervals {
				testAdd(t, s, string(rune('a'+n)), 0, ivl)
			}
			clock.Advance(tt.advance)
			assert.Equal(t, tt.want, s.Step())
		})
	}
}

func TestLeastExecuted_IgnoresInterval(t *testing.T) {
	s, _ := newTestScheduler(t, WithAlgorithm(AlgorithmLeastExecuted))
	testAdd(t, s, "a", 0, time.Hour)
	testAdd(t, s, "b", 0, time.Hour)

	got := []int{s.Step(), s.Step(), s.Step(), s.Step()}
	assert.Equal(t, []int{0, 1, 0, 1}, got)
}

func TestLongestWaiting_IgnoresInterval(t *testing.T) {
	s, clock := newTestScheduler(t, WithAlgorithm(AlgorithmLongestWaiting))
	testAdd(t, s, "first", 0, time.Hour)
	clock.Advance(2 * time.Millisecond)
	testAdd(t, s, "second", 0, time.Hour)
	clock.Advance(time.Millisecond)

	assert.Equal(t, 0, s.Step(), "registered earlier, waited longer")
	assert.Equal(t, 1, s.Step(), "first just ran")
}

func TestPausedTaskNeverSelected(t *testing.T) {
	for _, alg := range Algorithms() {
		t.Run(alg.String(), func(t *testing.T) {
			s, clock := newTestScheduler(t, WithAlgorithm(alg))
			i, err := s.AddTask("held", noop, 9, time.Millisecond, StatePaused, 0)
			require.NoError(t, err)

			for n := 0; n < 5; n++ {
				clock.Advance(time.Millisecond)
				assert.Equal(t, none, s.Step())
			}

			require.NoError(t, s.Resume(i))
			switch alg {
			case AlgorithmLeastExecuted, AlgorithmLongestWaiting:
				assert.Equal(t, i, s.Step(), "no interval gate")
			default:
				assert.Equal(t, none, s.Step(), "resume restamps the last execution")
				clock.Advance(time.Millisecond)
				assert.Equal(t, i, s.Step())
			}
		})
	}
}

func TestUnknownAlgorithmIdles(t *testing.T) {
	s, clock := newTestScheduler(t)
	testAdd(t, s, "a", 0, time.Millisecond)

	require.NoError(t, s.SetAlgorithm(Algorithm(42)))
	for n := 0; n < 3; n++ {
		clock.Advance(time.Millisecond)
		assert.Equal(t, none, s.Step())
	}

	a, selecting := s.Algorithm()
	assert.Equal(t, Algorithm(42), a)
	assert.False(t, selecting)
	assert.Equal(t, "NONE(42)", a.String())
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{in: "PRIORITY", want: AlgorithmPriority},
		{in: "round_robin", want: AlgorithmRoundRobin},
		{in: " EDF ", want: AlgorithmEarliestDeadlineFirst},
		{in: "LEAST_EXECUTED", want: AlgorithmLeastExecuted},
		{in: "lw", want: AlgorithmLongestWaiting},
		{in: "fifo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
