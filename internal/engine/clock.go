package engine

// IntervalClock is a one-second countdown. It never reads the wall clock;
// the owner calls Tick once per second while the clock is active.
type IntervalClock struct {
	remaining  int
	active     bool
	armed      bool
	onTick     func(remaining int)
	onComplete func()
}

// NewIntervalClock creates an idle clock. Either hook may be nil.
func NewIntervalClock(onTick func(remaining int), onComplete func()) *IntervalClock {
	return &IntervalClock{
		onTick:     onTick,
		onComplete: onComplete,
	}
}

// Start resets the countdown to durationSeconds and begins ticking.
// A zero duration completes immediately.
func (c *IntervalClock) Start(durationSeconds int) {
	c.arm(durationSeconds)
	c.Resume()
}

// arm loads a duration without starting the cadence.
func (c *IntervalClock) arm(durationSeconds int) {
	if durationSeconds < 0 {
		panic("engine: negative interval duration")
	}
	c.remaining = durationSeconds
	c.active = false
	c.armed = true
}

// Tick decrements the countdown. It is a no-op while paused or stopped.
func (c *IntervalClock) Tick() {
	if !c.active {
		return
	}
	c.remaining--
	if c.onTick != nil {
		c.onTick(c.remaining)
	}
	if c.remaining <= 0 {
		c.remaining = 0
		c.complete()
	}
}

// Pause stops the cadence and keeps the remaining time.
func (c *IntervalClock) Pause() {
	c.active = false
}

// Resume restarts the cadence after Pause. It does nothing once the clock
// has completed or been stopped; Start re-arms it.
func (c *IntervalClock) Resume() {
	if !c.armed || c.active {
		return
	}
	if c.remaining == 0 {
		c.complete()
		return
	}
	c.active = true
}

// Stop halts the clock and leaves remaining as is.
func (c *IntervalClock) Stop() {
	c.active = false
	c.armed = false
}

// Remaining returns the seconds left in the current interval.
func (c *IntervalClock) Remaining() int {
	return c.remaining
}

// Active reports whether ticks are currently counted.
func (c *IntervalClock) Active() bool {
	return c.active
}

// complete disarms before signalling so the hook may Start the next interval.
func (c *IntervalClock) complete() {
	c.active = false
	c.armed = false
	if c.onComplete != nil {
		c.onComplete()
	}
}
