// Package resttimer counts down rest intervals between sets and exercises.
// A Timer runs at most one countdown at a time and never blocks its callers;
// starting a new countdown replaces the running one.
package resttimer

import (
	"context"
	"sync"
	"time"
)

// Kind tells what the student is resting between.
type Kind string

const (
	KindNone     Kind = ""
	KindSet      Kind = "set"
	KindExercise Kind = "exercise"
)

// Status is a point-in-time view of the countdown.
type Status struct {
	Kind             Kind          `json:"kind"`
	Running          bool          `json:"running"`
	Remaining        time.Duration `json:"-"`
	RemainingSeconds int           `json:"remaining_seconds"`
}

// Timer is a cooperative countdown. The zero value is not usable; use New.
type Timer struct {
	tick time.Duration

	mu        sync.Mutex
	kind      Kind
	remaining time.Duration
	stop      chan struct{} // closed to end the running countdown goroutine
	done      chan struct{} // closed when the running countdown ends for any reason
}

// New creates a Timer that decrements once per tick. A non-positive tick
// means one second.
func New(tick time.Duration) *Timer {
	if tick <= 0 {
		tick = time.Second
	}
	return &Timer{tick: tick}
}

// Start begins a countdown of d, replacing any running countdown.
func (t *Timer) Start(kind Kind, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.endLocked()
	t.kind = kind
	if d <= 0 {
		t.remaining = 0
		return
	}
	t.remaining = d
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(t.stop)
}

// Skip ends the running countdown immediately with zero time remaining.
func (t *Timer) Skip() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remaining = 0
	t.endLocked()
}

// Stop ends the running countdown and clears its kind.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLocked()
	t.kind = KindNone
	t.remaining = 0
}

// Status returns the current countdown state.
func (t *Timer) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		Kind:             t.kind,
		Running:          t.stop != nil,
		Remaining:        t.remaining,
		RemainingSeconds: int((t.remaining + time.Second - 1) / time.Second),
	}
}

// Wait blocks until the running countdown ends or ctx is done. It returns
// immediately when nothing is running.
func (t *Timer) Wait(ctx context.Context) error {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Timer) run(stop chan struct{}) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			if t.stop != stop {
				// Replaced by a newer countdown between tick and lock.
				t.mu.Unlock()
				return
			}
			t.remaining -= t.tick
			if t.remaining <= 0 {
				t.remaining = 0
				t.endLocked()
				t.mu.Unlock()
				return
			}
			t.mu.Unlock()
		}
	}
}

// endLocked must be called with t.mu held.
func (t *Timer) endLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
}
