package engine

// SessionController is the public control surface of a guided session. It
// is not safe for concurrent use; the host serialises calls, including Tick.
type SessionController struct {
	seq       *StepSequencer
	events    Events
	feedback  Feedback
	paused    bool
	completed bool
	disposed  bool
}

// NewSessionController validates steps and returns a controller in the
// overview (PhaseIdle). feedback may be nil.
func NewSessionController(steps []Step, events Events, feedback Feedback) (*SessionController, error) {
	c := &SessionController{
		events:   events,
		feedback: feedback,
	}
	seq, err := NewStepSequencer(steps, c.handleEnter, c.handleTick)
	if err != nil {
		return nil, err
	}
	c.seq = seq
	return c, nil
}

// Start leaves the overview and enters the first step. It does nothing once
// the session has started.
func (c *SessionController) Start() error {
	if err := c.usable(); err != nil {
		return err
	}
	if c.seq.Position().Index != OverviewIndex {
		return nil
	}
	c.seq.Advance()
	c.holdIfPaused()
	return nil
}

// Play resumes a paused session.
func (c *SessionController) Play() error {
	if err := c.usable(); err != nil {
		return err
	}
	if !c.paused {
		return nil
	}
	c.paused = false
	c.seq.Clock().Resume()
	c.emitStepChange()
	return nil
}

// Pause freezes the running interval. Pausing the overview or an already
// paused session is a no-op.
func (c *SessionController) Pause() error {
	if err := c.usable(); err != nil {
		return err
	}
	if c.paused || c.seq.Position().Index == OverviewIndex {
		return nil
	}
	c.paused = true
	c.seq.Clock().Pause()
	c.emitStepChange()
	return nil
}

// SkipForward ends the current step or break regardless of the time left.
// From the overview it starts the session.
func (c *SessionController) SkipForward() error {
	if err := c.usable(); err != nil {
		return err
	}
	if !c.seq.SkipBreak() {
		c.seq.Advance()
	}
	c.holdIfPaused()
	return nil
}

// SkipBackward returns to the previous step.
func (c *SessionController) SkipBackward() error {
	if err := c.usable(); err != nil {
		return err
	}
	c.seq.Previous()
	if c.seq.Position().Index == OverviewIndex {
		c.paused = false
	}
	c.holdIfPaused()
	return nil
}

// GoToStep jumps to step i, or to the overview for OverviewIndex.
func (c *SessionController) GoToStep(i int) error {
	if err := c.usable(); err != nil {
		return err
	}
	if i == OverviewIndex {
		c.paused = false
	}
	if err := c.seq.GoToStep(i); err != nil {
		return err
	}
	c.holdIfPaused()
	return nil
}

// Tick delivers one second of host time. Ticks outside a running interval
// are dropped.
func (c *SessionController) Tick() {
	if c.disposed || c.completed || c.paused {
		return
	}
	c.seq.Clock().Tick()
}

// Dispose stops the session for good. Later calls are no-ops or return
// ErrSessionDisposed.
func (c *SessionController) Dispose() {
	c.disposed = true
	c.seq.Clock().Stop()
}

// Phase returns the current phase.
func (c *SessionController) Phase() Phase {
	pos := c.seq.Position()
	switch {
	case c.completed:
		return PhaseCompleted
	case pos.Index == OverviewIndex:
		return PhaseIdle
	case c.paused:
		return PhasePaused
	case pos.InBreak:
		return PhaseRunningBreak
	default:
		return PhaseRunningStep
	}
}

// State returns a snapshot of the session.
func (c *SessionController) State() SessionState {
	remaining := c.seq.Clock().Remaining()
	if c.completed {
		remaining = 0
	}
	return SessionState{
		CurrentStepIndex:     c.seq.Position().Index,
		Phase:                c.Phase(),
		RemainingSeconds:     remaining,
		CompletedStepIndices: c.seq.Completed(),
	}
}

// InBreak reports whether the current interval is a break, paused or not.
func (c *SessionController) InBreak() bool {
	return c.seq.InBreak()
}

// Steps returns a copy of the session's steps.
func (c *SessionController) Steps() []Step {
	return c.seq.Steps()
}

// Completed reports whether the session reached the end.
func (c *SessionController) Completed() bool {
	return c.completed
}

func (c *SessionController) usable() error {
	if c.disposed {
		return ErrSessionDisposed
	}
	if c.completed {
		return ErrSessionCompleted
	}
	return nil
}

// holdIfPaused keeps a paused session paused after navigation re-armed the
// clock.
func (c *SessionController) holdIfPaused() {
	if c.paused && !c.completed && c.seq.Position().Index != OverviewIndex {
		c.seq.Clock().Pause()
	}
}

func (c *SessionController) handleEnter(pos Position) {
	if c.seq.Finished() {
		c.finish()
		return
	}
	switch {
	case pos.Index == OverviewIndex:
	case pos.InBreak:
		c.cue(CueBreakStart)
	default:
		c.cue(CueStepStart)
	}
	c.emitStepChange()
}

func (c *SessionController) handleTick(remaining int) {
	if remaining > 0 && remaining <= countdownSeconds {
		c.cue(CueCountdown)
	}
	if c.events.OnTick != nil {
		c.events.OnTick(remaining, c.Phase())
	}
}

// finish signals completion once; a second arrival at the end is ignored.
func (c *SessionController) finish() {
	if c.completed {
		return
	}
	c.completed = true
	c.paused = false
	c.emitStepChange()
	c.cue(CueSessionComplete)
	if c.events.OnSessionComplete != nil {
		c.events.OnSessionComplete()
	}
}

func (c *SessionController) emitStepChange() {
	if c.events.OnStepChange != nil {
		c.events.OnStepChange(c.seq.Position().Index, c.Phase())
	}
}

func (c *SessionController) cue(cue Cue) {
	if c.feedback != nil {
		c.feedback.Cue(cue)
	}
}
