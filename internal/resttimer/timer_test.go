package resttimer

import (
	"context"
	"testing"
	"time"
)

// TestCountdownRunsOut verifies a short countdown ends on its own and reports
// zero remaining.
func TestCountdownRunsOut(t *testing.T) {
	timer := New(5 * time.Millisecond)
	timer.Start(KindSet, 20*time.Millisecond)

	if st := timer.Status(); !st.Running || st.Kind != KindSet {
		t.Fatalf("status after start = %+v, want running set rest", st)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := timer.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	st := timer.Status()
	if st.Running {
		t.Error("timer still running after countdown ended")
	}
	if st.Remaining != 0 {
		t.Errorf("remaining = %v, want 0", st.Remaining)
	}
}

// TestSkipEndsImmediately verifies skipping rest zeroes remaining time and
// releases waiters without waiting for the ticker.
func TestSkipEndsImmediately(t *testing.T) {
	timer := New(time.Second)
	timer.Start(KindExercise, time.Hour)

	waited := make(chan error, 1)
	go func() { waited <- timer.Wait(context.Background()) }()

	timer.Skip()

	select {
	case err := <-waited:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Skip")
	}

	st := timer.Status()
	if st.Running || st.Remaining != 0 || st.RemainingSeconds != 0 {
		t.Errorf("status after skip = %+v, want stopped with 0 remaining", st)
	}
	if st.Kind != KindExercise {
		t.Errorf("kind after skip = %q, want %q", st.Kind, KindExercise)
	}
}

// TestStartReplacesRunningCountdown verifies only the newest countdown is live.
func TestStartReplacesRunningCountdown(t *testing.T) {
	timer := New(time.Second)
	timer.Start(KindSet, time.Hour)
	timer.Start(KindExercise, 90*time.Second)

	st := timer.Status()
	if st.Kind != KindExercise {
		t.Errorf("kind = %q, want %q", st.Kind, KindExercise)
	}
	if st.RemainingSeconds != 90 {
		t.Errorf("remaining seconds = %d, want 90", st.RemainingSeconds)
	}
	timer.Stop()
}

// TestWaitHonoursContext verifies a waiter can give up before rest ends.
func TestWaitHonoursContext(t *testing.T) {
	timer := New(time.Second)
	timer.Start(KindSet, time.Hour)
	defer timer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := timer.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait = %v, want %v", err, context.DeadlineExceeded)
	}
	if !timer.Status().Running {
		t.Error("countdown should keep running after a waiter gives up")
	}
}

// TestZeroDurationDoesNotRun verifies an empty rest interval never starts a goroutine.
func TestZeroDurationDoesNotRun(t *testing.T) {
	timer := New(0)
	timer.Start(KindSet, 0)
	if timer.Status().Running {
		t.Error("zero-length countdown reported running")
	}
	if err := timer.Wait(context.Background()); err != nil {
		t.Errorf("Wait on idle timer = %v, want nil", err)
	}
}

// TestStopClearsKind verifies Stop resets the timer to idle.
func TestStopClearsKind(t *testing.T) {
	timer := New(time.Second)
	timer.Start(KindSet, time.Minute)
	timer.Stop()

	st := timer.Status()
	if st.Running || st.Kind != KindNone || st.Remaining != 0 {
		t.Errorf("status after stop = %+v, want idle", st)
	}
}
