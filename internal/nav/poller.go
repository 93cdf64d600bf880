package nav

import (
	"sync"
	"time"
)

// Poller delivers one tick per arming. The consumer calls Rearm after handling
// a tick, so checks never overlap or pile up.
type Poller struct {
	interval time.Duration
	c        chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewPoller returns an armed poller.
func NewPoller(interval time.Duration) *Poller {
	p := &Poller{interval: interval, c: make(chan struct{}, 1)}
	p.Rearm()
	return p
}

func (p *Poller) C() <-chan struct{} { return p.c }

func (p *Poller) Interval() time.Duration { return p.interval }

func (p *Poller) fire() {
	select {
	case p.c <- struct{}{}:
	default:
	}
}

// Rearm schedules the next tick. It is a no-op after Stop.
func (p *Poller) Rearm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.interval, p.fire)
}

// Stop cancels the pending tick.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
	}
}
