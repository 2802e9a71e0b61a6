package engine

import (
	"sync"
	"time"
)

// Driver is the host-side repeating timer: it calls tick on every interval
// from its own goroutine until stopped.
type Driver struct {
	interval time.Duration
	tick     func()
	stopCh   chan struct{}
	done     chan struct{}
	start    sync.Once
	stop     sync.Once
}

// NewDriver creates a driver. A non-positive interval defaults to one second.
func NewDriver(interval time.Duration, tick func()) *Driver {
	if interval <= 0 {
		interval = time.Second
	}
	return &Driver{
		interval: interval,
		tick:     tick,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the ticking loop. Only the first call has an effect.
func (d *Driver) Start() {
	d.start.Do(func() {
		go d.run()
	})
}

// Stop ends the loop without waiting for it. It is safe to call from inside
// the tick function and more than once.
func (d *Driver) Stop() {
	d.stop.Do(func() {
		close(d.stopCh)
	})
}

// Done is closed once the loop has exited.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

func (d *Driver) run() {
	defer close(d.done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			select {
			case <-d.stopCh:
				return
			default:
			}
			d.tick()
		}
	}
}
