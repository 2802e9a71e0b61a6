package engine

import "errors"

// Phase is the externally visible mode of a guided session.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseRunningStep  Phase = "running_step"
	PhaseRunningBreak Phase = "running_break"
	PhasePaused       Phase = "paused"
	PhaseCompleted    Phase = "completed"
)

// OverviewIndex is the step index of a session that has not started yet.
const OverviewIndex = -1

// Step is one timed unit of a session (an exercise, a recipe step).
// Payload is carried for the host and never inspected here.
type Step struct {
	Index             int
	DurationSeconds   int
	BreakAfterSeconds int
	Payload           any
}

// SessionState is a point-in-time view of a controller.
type SessionState struct {
	CurrentStepIndex     int
	Phase                Phase
	RemainingSeconds     int
	CompletedStepIndices []int
}

// Cue is a feedback signal for sound or haptics.
type Cue string

const (
	CueStepStart       Cue = "step_start"
	CueBreakStart      Cue = "break_start"
	CueCountdown       Cue = "countdown"
	CueSessionComplete Cue = "session_complete"
)

// Feedback receives cues. Implementations must not call back into the
// controller.
type Feedback interface {
	Cue(cue Cue)
}

// FeedbackFunc adapts a function to Feedback.
type FeedbackFunc func(Cue)

// Cue implements Feedback.
func (f FeedbackFunc) Cue(cue Cue) { f(cue) }

// Events are the callbacks a host registers on a controller. Nil fields are
// skipped.
type Events struct {
	OnTick            func(remaining int, phase Phase)
	OnStepChange      func(index int, phase Phase)
	OnSessionComplete func()
}

var (
	ErrNoSteps          = errors.New("session needs at least one step")
	ErrNegativeDuration = errors.New("step durations must be non-negative")
	ErrInvalidStepIndex = errors.New("invalid step index")
	ErrSessionCompleted = errors.New("session already completed")
	ErrSessionDisposed  = errors.New("session disposed")
)

// countdownSeconds is how many final seconds of an interval emit CueCountdown.
const countdownSeconds = 3
