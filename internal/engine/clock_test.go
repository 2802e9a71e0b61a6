package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalClock_CountsDownAndCompletesOnce(t *testing.T) {
	var ticks []int
	completions := 0
	clock := NewIntervalClock(func(r int) { ticks = append(ticks, r) }, func() { completions++ })

	clock.Start(3)
	require.True(t, clock.Active())
	require.Equal(t, 3, clock.Remaining())

	for i := 0; i < 5; i++ {
		clock.Tick()
	}

	assert.Equal(t, []int{2, 1, 0}, ticks)
	assert.Equal(t, 1, completions)
	assert.Equal(t, 0, clock.Remaining())
	assert.False(t, clock.Active())
}

func TestIntervalClock_ZeroDurationCompletesImmediately(t *testing.T) {
	completions := 0
	clock := NewIntervalClock(nil, func() { completions++ })

	clock.Start(0)

	assert.Equal(t, 1, completions)
	assert.False(t, clock.Active())
	clock.Tick()
	assert.Equal(t, 1, completions)
}

func TestIntervalClock_PauseResumeKeepsRemaining(t *testing.T) {
	clock := NewIntervalClock(nil, nil)
	clock.Start(10)
	clock.Tick()
	clock.Tick()

	clock.Pause()
	before := clock.Remaining()
	clock.Tick()
	clock.Tick()
	assert.Equal(t, before, clock.Remaining(), "ticks while paused must not count")

	clock.Resume()
	assert.Equal(t, before, clock.Remaining())
	assert.True(t, clock.Active())

	clock.Tick()
	assert.Equal(t, before-1, clock.Remaining())
}

func TestIntervalClock_StopKeepsRemainingAndBlocksResume(t *testing.T) {
	completions := 0
	clock := NewIntervalClock(nil, func() { completions++ })
	clock.Start(5)
	clock.Tick()

	clock.Stop()
	clock.Resume()
	clock.Tick()

	assert.Equal(t, 4, clock.Remaining())
	assert.False(t, clock.Active())
	assert.Zero(t, completions)

	clock.Start(1)
	clock.Tick()
	assert.Equal(t, 1, completions)
}

func TestIntervalClock_RestartFromCompletionHook(t *testing.T) {
	var clock *IntervalClock
	rounds := 0
	clock = NewIntervalClock(nil, func() {
		rounds++
		if rounds < 3 {
			clock.Start(2)
		}
	})

	clock.Start(2)
	for i := 0; i < 10; i++ {
		clock.Tick()
	}

	assert.Equal(t, 3, rounds)
}

func TestIntervalClock_NegativeDurationPanics(t *testing.T) {
	clock := NewIntervalClock(nil, nil)
	assert.Panics(t, func() { clock.Start(-1) })
}
