package node

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// State captures the lifecycle of a node: Running while it mines/proposes
// and gossips, ShuttingDown once the run budget has elapsed or a fatal
// safety violation was observed and cleanup is in progress, Shutdown once
// every worker goroutine has returned.
type State uint32

const (
	// Running is the normal operating state.
	Running State = iota
	// ShuttingDown means cancellation has been signalled but workers may
	// still be unwinding.
	ShuttingDown
	// Shutdown means waitRoutines has returned; no worker is left running.
	Shutdown
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case ShuttingDown:
		return "ShuttingDown"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// WGLIMIT bounds the number of goroutines state.goFunc will launch: the
// control timer, one production worker, one inbound loop and one outbound
// worker per peer comfortably fit under it for any simulated cluster size
// this project targets.
const WGLIMIT = 64

// state tracks the node's lifecycle state and owns the waitgroup used to
// bring every worker goroutine down cleanly on shutdown. logger is optional
// (nil in bare unit tests) and is only used to report a dropped goFunc call.
type state struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
	logger  *logrus.Entry
}

func (s *state) getState() State {
	return State(atomic.LoadUint32((*uint32)(&s.state)))
}

func (s *state) setState(v State) {
	atomic.StoreUint32((*uint32)(&s.state), uint32(v))
}

// goFunc launches f as a tracked goroutine, provided fewer than WGLIMIT are
// currently running. If the limit is reached, f is never run; this is
// logged rather than silently swallowed, since a dropped gossip send or
// worker is otherwise invisible.
func (s *state) goFunc(f func()) {
	if atomic.LoadInt32(&s.wgCount) < WGLIMIT {
		s.wg.Add(1)
		atomic.AddInt32(&s.wgCount, 1)
		go func() {
			defer s.wg.Done()
			defer atomic.AddInt32(&s.wgCount, -1)
			f()
		}()
		return
	}
	if s.logger != nil {
		s.logger.Warn("goFunc: WGLIMIT reached, dropping work item")
	}
}

func (s *state) waitRoutines() {
	s.wg.Wait()
}
