package engine

import (
	"fmt"
	"sort"
)

// Position identifies where a sequencer is: Index is OverviewIndex before
// the first step and len(steps) once finished.
type Position struct {
	Index   int
	InBreak bool
}

// StepSequencer walks an ordered list of steps and inserts a break after a
// step when BreakAfterSeconds > 0, except after the last one. It drives its
// own IntervalClock and auto-advances when an interval runs out.
type StepSequencer struct {
	steps     []Step
	index     int
	inBreak   bool
	completed map[int]struct{}
	clock     *IntervalClock
	onEnter   func(Position)
}

// NewStepSequencer validates steps and returns a sequencer in the overview
// position. Step indices are reassigned from list order. onEnter runs after
// every transition with the clock already loaded for the new interval;
// onTick receives every countdown decrement. Both may be nil.
func NewStepSequencer(steps []Step, onEnter func(Position), onTick func(remaining int)) (*StepSequencer, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	owned := make([]Step, len(steps))
	for i, step := range steps {
		if step.DurationSeconds < 0 || step.BreakAfterSeconds < 0 {
			return nil, fmt.Errorf("step %d: %w", i, ErrNegativeDuration)
		}
		step.Index = i
		owned[i] = step
	}

	s := &StepSequencer{
		steps:     owned,
		index:     OverviewIndex,
		completed: make(map[int]struct{}),
		onEnter:   onEnter,
	}
	s.clock = NewIntervalClock(onTick, s.Advance)
	return s, nil
}

// Advance moves past the current interval. A finished step is recorded as
// completed; its break follows when one is defined.
func (s *StepSequencer) Advance() {
	switch {
	case s.Finished():
		return
	case s.index == OverviewIndex:
		s.enterStep(0)
	case s.inBreak:
		s.enterStep(s.index + 1)
	default:
		i := s.index
		s.completed[i] = struct{}{}
		if s.steps[i].BreakAfterSeconds > 0 && i < len(s.steps)-1 {
			s.enterBreak(i)
			return
		}
		s.enterStep(i + 1)
	}
}

// SkipBreak leaves the current break for the next step and discards the
// break time left. It reports false when no break is running.
func (s *StepSequencer) SkipBreak() bool {
	if !s.inBreak {
		return false
	}
	s.enterStep(s.index + 1)
	return true
}

// GoToStep jumps to step i from any position. OverviewIndex returns to the
// overview. Jumping never marks steps completed.
func (s *StepSequencer) GoToStep(i int) error {
	if i == OverviewIndex {
		s.enterOverview()
		return nil
	}
	if i < 0 || i >= len(s.steps) {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidStepIndex, i, OverviewIndex, len(s.steps)-1)
	}
	s.enterStep(i)
	return nil
}

// Previous steps back one step, or from a break back into the step it
// followed. From step 0 it returns to the overview.
func (s *StepSequencer) Previous() {
	switch {
	case s.index == OverviewIndex, s.Finished():
		return
	case s.inBreak:
		s.enterStep(s.index)
	case s.index > 0:
		s.enterStep(s.index - 1)
	default:
		s.enterOverview()
	}
}

// Position returns the current position.
func (s *StepSequencer) Position() Position {
	return Position{Index: s.index, InBreak: s.inBreak}
}

// Finished reports whether every step has been passed.
func (s *StepSequencer) Finished() bool {
	return s.index == len(s.steps)
}

// InBreak reports whether a break is running.
func (s *StepSequencer) InBreak() bool {
	return s.inBreak
}

// Clock exposes the interval clock for pause and tick control.
func (s *StepSequencer) Clock() *IntervalClock {
	return s.clock
}

// Len returns the number of steps.
func (s *StepSequencer) Len() int {
	return len(s.steps)
}

// Steps returns a copy of the steps.
func (s *StepSequencer) Steps() []Step {
	return append([]Step(nil), s.steps...)
}

// Completed returns the completed step indices in ascending order.
func (s *StepSequencer) Completed() []int {
	out := make([]int, 0, len(s.completed))
	for i := range s.completed {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (s *StepSequencer) enterStep(i int) {
	if i >= len(s.steps) {
		s.enterFinished()
		return
	}
	s.index = i
	s.inBreak = false
	s.clock.arm(s.steps[i].DurationSeconds)
	s.notify()
	s.clock.Resume()
}

func (s *StepSequencer) enterBreak(i int) {
	s.index = i
	s.inBreak = true
	s.clock.arm(s.steps[i].BreakAfterSeconds)
	s.notify()
	s.clock.Resume()
}

func (s *StepSequencer) enterOverview() {
	s.index = OverviewIndex
	s.inBreak = false
	s.clock.arm(0)
	s.clock.Stop()
	s.notify()
}

func (s *StepSequencer) enterFinished() {
	s.index = len(s.steps)
	s.inBreak = false
	s.clock.arm(0)
	s.clock.Stop()
	s.notify()
}

func (s *StepSequencer) notify() {
	if s.onEnter != nil {
		s.onEnter(s.Position())
	}
}
