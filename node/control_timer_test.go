package node

import (
	"testing"
	"time"
)

func TestFixedControlTimerTicksAndRearms(t *testing.T) {
	ct := NewFixedControlTimer()
	go ct.Run(10 * time.Millisecond)
	defer ct.Shutdown()

	select {
	case <-ct.tickCh:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for first tick")
	}

	ct.resetCh <- 10 * time.Millisecond

	select {
	case <-ct.tickCh:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for second tick")
	}
}

func TestControlTimerShutdownStopsRun(t *testing.T) {
	ct := NewFixedControlTimer()
	done := make(chan struct{})
	go func() {
		ct.Run(5 * time.Millisecond)
		close(done)
	}()

	<-ct.tickCh
	ct.Shutdown()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Run did not return after Shutdown")
	}
}

func TestControlTimerStopChHaltsPendingTimer(t *testing.T) {
	ct := NewFixedControlTimer()
	go ct.Run(time.Hour)
	defer ct.Shutdown()

	ct.stopCh <- struct{}{}

	select {
	case <-ct.tickCh:
		t.Fatal("stopped timer should not tick")
	case <-time.After(50 * time.Millisecond):
	}
}
