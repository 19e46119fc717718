// Package timers implements TimerRegistry (spec §4.6): per-room
// single-shot deadlines and periodic 1Hz tick streams, both cancellable
// and replaceable. Grounded on the teacher's SSE streaming loops in
// internal/handlers/sse.go, which pair a time.Ticker with a select over a
// context-cancellation channel — the same shape, generalized from one
// fixed heartbeat interval to per-room deadline/tick scheduling owned by
// the engine rather than a single HTTP handler.
package timers

import (
	"log"
	"sync"
	"time"
)

// Registry tracks, per room code, at most one active deadline and one
// active tick stream.
type Registry struct {
	mu     sync.Mutex
	timers map[string]*roomTimers
}

type roomTimers struct {
	deadline   *time.Timer
	generation uint64
	ticker     *time.Ticker
	tickDone   chan struct{}
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{timers: make(map[string]*roomTimers)}
}

func (r *Registry) entryFor(code string) *roomTimers {
	rt, ok := r.timers[code]
	if !ok {
		rt = &roomTimers{}
		r.timers[code] = rt
	}
	return rt
}

// SetDeadline schedules onFire to run once after duration. A prior
// deadline for the same code, if any, is cancelled first — idempotent
// replace per spec §4.6.
func (r *Registry) SetDeadline(code string, duration time.Duration, onFire func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt := r.entryFor(code)
	if rt.deadline != nil {
		rt.deadline.Stop()
	}
	rt.generation++
	gen := rt.generation
	rt.deadline = time.AfterFunc(duration, func() {
		r.mu.Lock()
		current := r.timers[code]
		stale := current == nil || current.generation != gen
		r.mu.Unlock()
		if stale {
			return
		}
		log.Printf("⏱ deadline fired for room %s", code)
		onFire()
	})
}

// StartTicks starts a 1-second tick stream that calls onTick with count,
// count-1, ..., 0, then auto-cancels. A prior tick stream for the same
// code, if any, is stopped first.
func (r *Registry) StartTicks(code string, count int, onTick func(remaining int)) {
	r.mu.Lock()
	rt := r.entryFor(code)
	r.stopTicksLocked(rt)

	ticker := time.NewTicker(time.Second)
	done := make(chan struct{})
	rt.ticker = ticker
	rt.tickDone = done
	r.mu.Unlock()

	go func() {
		remaining := count
		onTick(remaining)
		for {
			select {
			case <-done:
				ticker.Stop()
				return
			case <-ticker.C:
				remaining--
				onTick(remaining)
				if remaining <= 0 {
					ticker.Stop()
					return
				}
			}
		}
	}()
}

// Cancel stops any active deadline and tick stream for code. Synchronous:
// once Cancel returns, no further callbacks for that room will fire
// (spec §4.6) — achieved by closing tickDone under the lock before the
// goroutine can observe a subsequent tick, and by Timer.Stop preventing a
// not-yet-fired AfterFunc from running.
func (r *Registry) Cancel(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.timers[code]
	if !ok {
		return
	}
	if rt.deadline != nil {
		rt.deadline.Stop()
		rt.deadline = nil
		rt.generation++
	}
	r.stopTicksLocked(rt)
}

func (r *Registry) stopTicksLocked(rt *roomTimers) {
	if rt.ticker == nil {
		return
	}
	close(rt.tickDone)
	rt.ticker = nil
	rt.tickDone = nil
}

// Teardown cancels everything for code and removes its bookkeeping
// entirely, for use when a room is deleted.
func (r *Registry) Teardown(code string) {
	r.Cancel(code)
	r.mu.Lock()
	delete(r.timers, code)
	r.mu.Unlock()
}
