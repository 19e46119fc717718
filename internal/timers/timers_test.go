package timers

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSetDeadlineFires(t *testing.T) {
	r := New()
	var fired int32
	r.SetDeadline("ROOM01", 10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 1 {
		t.Errorf("expected deadline to fire once, fired=%d", fired)
	}
}

func TestSetDeadlineReplaceCancelsPrior(t *testing.T) {
	r := New()
	var firstFired, secondFired int32

	r.SetDeadline("ROOM01", 10*time.Millisecond, func() {
		atomic.AddInt32(&firstFired, 1)
	})
	r.SetDeadline("ROOM01", 30*time.Millisecond, func() {
		atomic.AddInt32(&secondFired, 1)
	})

	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&firstFired) != 0 {
		t.Errorf("expected first deadline to be cancelled by replace, fired=%d", firstFired)
	}
	if atomic.LoadInt32(&secondFired) != 1 {
		t.Errorf("expected second deadline to fire, fired=%d", secondFired)
	}
}

func TestCancelPreventsFire(t *testing.T) {
	r := New()
	var fired int32
	r.SetDeadline("ROOM01", 10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	r.Cancel("ROOM01")

	time.Sleep(40 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Errorf("expected cancelled deadline to never fire, fired=%d", fired)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	r := New()
	r.Cancel("NEVER-SET")
	r.Cancel("NEVER-SET")
}

func TestStartTicksEmitsCountDownToZero(t *testing.T) {
	r := New()
	ticks := make(chan int, 10)
	r.StartTicks("ROOM01", 3, func(remaining int) {
		ticks <- remaining
	})

	want := []int{3, 2, 1, 0}
	for _, w := range want {
		select {
		case got := <-ticks:
			if got != w {
				t.Errorf("tick = %d, want %d", got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for tick %d", w)
		}
	}
}

func TestStartTicksReplaceStopsPrior(t *testing.T) {
	r := New()
	first := make(chan int, 10)
	r.StartTicks("ROOM01", 10, func(remaining int) { first <- remaining })
	<-first // consume the immediate first tick

	second := make(chan int, 10)
	r.StartTicks("ROOM01", 2, func(remaining int) { second <- remaining })

	want := []int{2, 1, 0}
	for _, w := range want {
		select {
		case got := <-second:
			if got != w {
				t.Errorf("tick = %d, want %d", got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for tick %d", w)
		}
	}

	// The first stream must not have produced any further ticks beyond
	// the one already consumed.
	select {
	case v := <-first:
		t.Errorf("expected replaced tick stream to stop, got extra tick %d", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelStopsTicks(t *testing.T) {
	r := New()
	ticks := make(chan int, 10)
	r.StartTicks("ROOM01", 100, func(remaining int) { ticks <- remaining })
	<-ticks

	r.Cancel("ROOM01")

	select {
	case v := <-ticks:
		t.Errorf("expected no ticks after cancel, got %d", v)
	case <-time.After(1200 * time.Millisecond):
	}
}

func TestTeardownRemovesBookkeeping(t *testing.T) {
	r := New()
	r.SetDeadline("ROOM01", time.Hour, func() {})
	r.Teardown("ROOM01")

	r.mu.Lock()
	_, exists := r.timers["ROOM01"]
	r.mu.Unlock()
	if exists {
		t.Error("expected teardown to remove the room's bookkeeping entirely")
	}
}
