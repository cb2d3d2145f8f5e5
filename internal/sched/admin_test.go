package sched

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTask_Capacity(t *testing.T) {
	s, _ := newTestScheduler(t)
	for n := 0; n < MaxTasks; n++ {
		i, err := s.AddTask(fmt.Sprintf("t%d", n), noop, 0, time.Millisecond, StateRunning, 0)
		require.NoError(t, err)
		assert.Equal(t, n, i, "indices follow registration order")
	}

	i, err := s.AddTask("overflow", noop, 0, time.Millisecond, StateRunning, 0)
	assert.ErrorIs(t, err, ErrCapacityFull)
	assert.Equal(t, CodeCapacityFull, CodeOf(err))
	assert.Equal(t, none, i)
	assert.Equal(t, MaxTasks, s.Len())
}

func TestAddTask_InvalidParams(t *testing.T) {
	tests := []struct {
		name     string
		fn       func()
		interval time.Duration
		state    State
		memory   int
	}{
		{name: "nil function", fn: nil, interval: time.Millisecond},
		{name: "zero interval", fn: noop, interval: 0},
		{name: "negative interval", fn: noop, interval: -time.Millisecond},
		{name: "negative memory", fn: noop, interval: time.Millisecond, memory: -1},
		{name: "unknown state", fn: noop, interval: time.Millisecond, state: State(9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestScheduler(t)
			_, err := s.AddTask("bad", tt.fn, 0, tt.interval, tt.state, tt.memory)
			assert.ErrorIs(t, err, ErrInvalidParams)
			assert.Equal(t, CodeInvalidParams, CodeOf(err))
			assert.Zero(t, s.Len())
		})
	}
}

func TestAddTask_InitialState(t *testing.T) {
	s, clock := newTestScheduler(t)
	clock.Advance(time.Second)
	i, err := s.AddTask("fresh", noop, 3, 20*time.Millisecond, StatePaused, 512)
	require.NoError(t, err)

	st, err := s.Stats(i)
	require.NoError(t, err)
	assert.Equal(t, "fresh", st.Name)
	assert.Equal(t, StatePaused, st.State)
	assert.Equal(t, 3, st.Priority)
	assert.Equal(t, 3, st.DynamicPriority)
	assert.Equal(t, 20*time.Millisecond, st.Interval)
	assert.Equal(t, clock.Now(), st.LastExecution)
	assert.Zero(t, st.ExecCount)
	assert.Zero(t, st.MinExecTime, "never ran")
	assert.Equal(t, neverRan, s.tasks[i].counters.minExecTime)
	assert.Equal(t, 512, st.MemoryAllocated)
	assert.Zero(t, st.StackUsed, "scratch still holds the sentinel")
}

func TestAdmin_InvalidIndex(t *testing.T) {
	s, _ := newTestScheduler(t)
	testAdd(t, s, "only", 0, time.Millisecond)

	for _, i := range []int{-1, 1, MaxTasks} {
		assert.ErrorIs(t, s.SetPriority(i, 1), ErrInvalidIndex)
		assert.ErrorIs(t, s.SetInterval(i, time.Second), ErrInvalidIndex)
		assert.ErrorIs(t, s.Pause(i), ErrInvalidIndex)
		assert.ErrorIs(t, s.Resume(i), ErrInvalidIndex)
		assert.ErrorIs(t, s.SetDebug(i, true), ErrInvalidIndex)
		_, err := s.Stats(i)
		assert.ErrorIs(t, err, ErrInvalidIndex)
		assert.Equal(t, CodeInvalidIndex, CodeOf(err))
		_, err = s.Scratch(i)
		assert.ErrorIs(t, err, ErrInvalidIndex)
	}
}

func TestSetPriority_OverwritesDynamic(t *testing.T) {
	s, _ := newTestScheduler(t)
	i := testAdd(t, s, "a", 1, time.Hour)
	s.Step()
	require.Equal(t, 2, s.tasks[i].dynamicPriority)

	require.NoError(t, s.SetPriority(i, 9))
	st, _ := s.Stats(i)
	assert.Equal(t, 9, st.Priority)
	assert.Equal(t, 9, st.DynamicPriority)
}

func TestSetInterval(t *testing.T) {
	s, clock := newTestScheduler(t)
	i := testAdd(t, s, "a", 1, time.Hour)

	assert.ErrorIs(t, s.SetInterval(i, 0), ErrInvalidParams)
	require.NoError(t, s.SetInterval(i, time.Millisecond))

	clock.Advance(time.Millisecond)
	assert.Equal(t, i, s.Step())
}

func TestPauseResume_ResetJitterAndRestamp(t *testing.T) {
	s, clock := newTestScheduler(t)
	i := testAdd(t, s, "a", 0, 10*time.Millisecond)

	clock.Advance(30 * time.Millisecond)
	require.Equal(t, i, s.Step())
	st, _ := s.Stats(i)
	require.Equal(t, 20*time.Millisecond, st.MaxJitter)

	clock.Advance(time.Millisecond)
	require.NoError(t, s.Pause(i))
	st, _ = s.Stats(i)
	assert.Equal(t, StatePaused, st.State)
	assert.Zero(t, st.MaxJitter)
	assert.Zero(t, st.TotalJitter)
	assert.Equal(t, clock.Now(), st.LastExecution)

	// a long pause must not show up as jitter
	clock.Advance(time.Hour)
	require.NoError(t, s.Resume(i))
	clock.Advance(10 * time.Millisecond)
	require.Equal(t, i, s.Step())
	st, _ = s.Stats(i)
	assert.Equal(t, StateRunning, st.State)
	assert.Zero(t, st.MaxJitter)
	assert.EqualValues(t, 2, st.ExecCount, "pause keeps the execution counters")
}

func TestSetAlgorithm_ResetsEverything(t *testing.T) {
	s, clock := newTestScheduler(t, WithAlgorithm(AlgorithmLeastExecuted))
	a := testAdd(t, s, "a", 2, 5*time.Millisecond)
	b := testAdd(t, s, "b", 3, 5*time.Millisecond)

	for n := 0; n < 4; n++ {
		clock.Advance(7 * time.Millisecond)
		s.Step()
	}
	require.NoError(t, s.Pause(b))
	s.tasks[a].dynamicPriority = 50

	clock.Advance(time.Second)
	require.NoError(t, s.SetAlgorithm(AlgorithmRoundRobin))

	for _, i := range []int{a, b} {
		st, err := s.Stats(i)
		require.NoError(t, err)
		assert.Equal(t, StateRunning, st.State)
		assert.Zero(t, st.ExecCount)
		assert.Zero(t, st.TotalTime)
		assert.Zero(t, st.TotalExecTime)
		assert.Zero(t, st.MaxExecTime)
		assert.Zero(t, st.TotalJitter)
		assert.Zero(t, st.MaxJitter)
		assert.Zero(t, st.DeadlineMisses)
		assert.Equal(t, st.Priority, st.DynamicPriority)
		assert.Equal(t, clock.Now(), st.LastExecution)
		assert.Equal(t, neverRan, s.tasks[i].counters.minExecTime)
	}

	alg, selecting := s.Algorithm()
	assert.Equal(t, AlgorithmRoundRobin, alg)
	assert.True(t, selecting)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeOK, CodeOf(nil))
	assert.Equal(t, CodeUnknown, CodeOf(ErrMailboxFull))
	assert.Equal(t, "CAPACITY_FULL", CodeCapacityFull.String())
	assert.Equal(t, "INVALID_INDEX", CodeOf(fmt.Errorf("wrapped: %w", ErrInvalidIndex)).String())
}
