package node

import (
	"math/rand"
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// ControlTimer drives a repeating tick on tickCh, resettable via resetCh and
// stoppable via stopCh, until Shutdown is called. Used by the node
// scheduler to pace re-checks of Engine.CanPropose while this node may not
// propose (for Hybrid, while it waits out the leader timeout).
type ControlTimer struct {
	timerFactory timerFactory
	tickCh       chan struct{}
	resetCh      chan time.Duration
	stopCh       chan struct{}
	shutdownCh   chan struct{}
	set          bool
}

func NewControlTimer(timerFactory timerFactory) *ControlTimer {
	return &ControlTimer{
		timerFactory: timerFactory,
		tickCh:       make(chan struct{}),
		resetCh:      make(chan time.Duration),
		stopCh:       make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

// NewRandomControlTimer jitters every tick by up to min, so that several
// nodes started from the same seed do not all wake at exactly the same
// instant.
func NewRandomControlTimer() *ControlTimer {
	randomTimeout := func(min time.Duration) <-chan time.Time {
		if min == 0 {
			return nil
		}
		extra := time.Duration(rand.Int63()) % min
		return time.After(min + extra)
	}
	return NewControlTimer(randomTimeout)
}

// NewFixedControlTimer ticks at exactly the requested interval, with no
// jitter. The node itself uses NewRandomControlTimer; this variant is used
// by the timer's tests.
func NewFixedControlTimer() *ControlTimer {
	fixed := func(d time.Duration) <-chan time.Time {
		if d == 0 {
			return nil
		}
		return time.After(d)
	}
	return NewControlTimer(fixed)
}

func (c *ControlTimer) Run(init time.Duration) {
	setTimer := func(t time.Duration) <-chan time.Time {
		c.set = true
		return c.timerFactory(t)
	}

	timer := setTimer(init)
	for {
		select {
		case <-timer:
			select {
			case c.tickCh <- struct{}{}:
			case <-c.shutdownCh:
				c.set = false
				return
			}
			c.set = false
		case t := <-c.resetCh:
			timer = setTimer(t)
		case <-c.stopCh:
			timer = nil
			c.set = false
		case <-c.shutdownCh:
			c.set = false
			return
		}
	}
}

func (c *ControlTimer) Shutdown() {
	close(c.shutdownCh)
}
