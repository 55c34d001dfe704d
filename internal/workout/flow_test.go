package workout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/resttimer"
)

// newTestFlow builds a Flow whose rest timer never ticks during a test, so
// remaining times stay at their seeded values.
func newTestFlow(plan *models.TrainingPlan, rep *fakeReporter) *Flow {
	return NewFlow(newTestRunner(plan, rep), resttimer.New(time.Hour), discardLog)
}

// TestFlowRestsAndAutoFinishes walks a two-exercise session: set rest from
// the exercise, exercise rest between exercises, and automatic finalize on
// the very last set.
func TestFlowRestsAndAutoFinishes(t *testing.T) {
	plan := testPlan("2", "1")
	plan.Sessions[0].Exercises[0].RestSeconds = 30
	rep := &fakeReporter{}
	f := newTestFlow(plan, rep)
	ctx := context.Background()
	first := plan.Sessions[0].Exercises[0].ID
	second := plan.Sessions[0].Exercises[1].ID

	_, p, err := f.Start(ctx, plan.ID, plan.Sessions[0].ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.CurrentExerciseID == nil || *p.CurrentExerciseID != first || p.CurrentSet != 0 {
		t.Fatalf("initial position = %v/%d, want first exercise set 0", p.CurrentExerciseID, p.CurrentSet)
	}

	step, err := f.LogSet(ctx, first, 0, SetInput{Reps: 10})
	if err != nil {
		t.Fatalf("LogSet: %v", err)
	}
	if step.Summary != nil {
		t.Fatal("session finalized too early")
	}
	if rest := step.Progress.Rest; rest.Kind != resttimer.KindSet || rest.RemainingSeconds != 30 || !rest.Running {
		t.Errorf("rest after set = %+v, want running 30s set rest", rest)
	}
	if step.Progress.CurrentSet != 1 {
		t.Errorf("current set = %d, want 1", step.Progress.CurrentSet)
	}

	step, err = f.LogSet(ctx, first, 1, SetInput{Reps: 9})
	if err != nil {
		t.Fatalf("LogSet: %v", err)
	}
	if rest := step.Progress.Rest; rest.Kind != resttimer.KindExercise || rest.RemainingSeconds != 90 {
		t.Errorf("rest after exercise = %+v, want 90s exercise rest", rest)
	}
	if step.Progress.CurrentExerciseID == nil || *step.Progress.CurrentExerciseID != second {
		t.Errorf("current exercise = %v, want second exercise", step.Progress.CurrentExerciseID)
	}
	if step.Progress.ExercisesCompleted != 1 {
		t.Errorf("exercises completed = %d, want 1", step.Progress.ExercisesCompleted)
	}

	step, err = f.LogSet(ctx, second, 0, SetInput{Reps: 10})
	if err != nil {
		t.Fatalf("LogSet: %v", err)
	}
	if step.Summary == nil {
		t.Fatal("last set did not finalize the session")
	}
	if step.Summary.ExercisesCompleted != 2 || step.Summary.XPEarned != 60 {
		t.Errorf("summary = %+v, want 2 exercises / 60 xp", step.Summary)
	}
	if step.Progress.Active || step.Progress.Rest.Running {
		t.Errorf("progress after finish = %+v, want idle", step.Progress)
	}
	if logs, awards, _ := rep.calls(); logs != 1 || awards != 1 {
		t.Errorf("logs=%d awards=%d, want 1 each", logs, awards)
	}
}

// TestFlowDefaultSetRest verifies exercises without a rest interval rest 60s.
func TestFlowDefaultSetRest(t *testing.T) {
	plan := testPlan("3")
	f := newTestFlow(plan, &fakeReporter{})
	ctx := context.Background()
	if _, _, err := f.Start(ctx, plan.ID, plan.Sessions[0].ID); err != nil {
		t.Fatal(err)
	}
	step, err := f.LogSet(ctx, plan.Sessions[0].Exercises[0].ID, 0, SetInput{Reps: 10})
	if err != nil {
		t.Fatal(err)
	}
	if got := step.Progress.Rest.RemainingSeconds; got != 60 {
		t.Errorf("rest = %ds, want 60s", got)
	}
}

// TestFlowSkipRest verifies skipping zeroes the countdown at once.
func TestFlowSkipRest(t *testing.T) {
	plan := testPlan("3")
	f := newTestFlow(plan, &fakeReporter{})
	ctx := context.Background()
	if _, _, err := f.Start(ctx, plan.ID, plan.Sessions[0].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.LogSet(ctx, plan.Sessions[0].Exercises[0].ID, 0, SetInput{Reps: 10}); err != nil {
		t.Fatal(err)
	}

	p := f.SkipRest()
	if p.Rest.Running || p.Rest.RemainingSeconds != 0 {
		t.Errorf("rest after skip = %+v, want stopped at 0", p.Rest)
	}
	if err := f.WaitRest(ctx); err != nil {
		t.Errorf("WaitRest after skip: %v", err)
	}
	if !p.Active {
		t.Error("skipping rest must not end the session")
	}
}

// TestFlowAutoFinishFailureAllowsRetry verifies a failed automatic finalize
// keeps the session on screen and Finish can retry it.
func TestFlowAutoFinishFailureAllowsRetry(t *testing.T) {
	plan := testPlan("1")
	rep := &fakeReporter{logErr: errors.New("backend unavailable")}
	f := newTestFlow(plan, rep)
	ctx := context.Background()
	if _, _, err := f.Start(ctx, plan.ID, plan.Sessions[0].ID); err != nil {
		t.Fatal(err)
	}

	_, err := f.LogSet(ctx, plan.Sessions[0].Exercises[0].ID, 0, SetInput{Reps: 10})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("LogSet err = %v, want ErrPersistence", err)
	}
	if p := f.Progress(); !p.Active || p.ExercisesCompleted != 1 {
		t.Fatalf("progress after failed finalize = %+v, want active with 1 exercise done", p)
	}

	rep.mu.Lock()
	rep.logErr = nil
	rep.mu.Unlock()

	summary, err := f.Finish(ctx)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if summary.XPEarned != 55 {
		t.Errorf("xp = %d, want 55", summary.XPEarned)
	}
	if f.Progress().Active {
		t.Error("session still active after retry")
	}
}

// TestFlowCompleteExercise verifies the explicit exercise-done path advances
// and a repeat tap does not restart rest.
func TestFlowCompleteExercise(t *testing.T) {
	plan := testPlan("1", "1")
	f := newTestFlow(plan, &fakeReporter{})
	ctx := context.Background()
	first := plan.Sessions[0].Exercises[0].ID
	if _, _, err := f.Start(ctx, plan.ID, plan.Sessions[0].ID); err != nil {
		t.Fatal(err)
	}

	if _, err := f.CompleteExercise(ctx, first); !errors.Is(err, ErrIncompleteExercise) {
		t.Fatalf("err = %v, want ErrIncompleteExercise", err)
	}
	if _, err := f.LogSet(ctx, first, 0, SetInput{Reps: 10}); err != nil {
		t.Fatal(err)
	}
	f.SkipRest()

	step, err := f.CompleteExercise(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if step.Progress.Rest.Running {
		t.Error("repeat completion restarted rest")
	}
	if step.Progress.ExercisesCompleted != 1 {
		t.Errorf("completed = %d, want 1", step.Progress.ExercisesCompleted)
	}
}

// TestFlowCancel verifies cancel stops rest and persists nothing.
func TestFlowCancel(t *testing.T) {
	plan := testPlan("3", "3")
	rep := &fakeReporter{}
	f := newTestFlow(plan, rep)
	ctx := context.Background()
	if _, _, err := f.Start(ctx, plan.ID, plan.Sessions[0].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.LogSet(ctx, plan.Sessions[0].Exercises[0].ID, 0, SetInput{Reps: 10}); err != nil {
		t.Fatal(err)
	}

	f.Cancel(ctx)

	p := f.Progress()
	if p.Active || p.Rest.Running || p.Rest.Kind != resttimer.KindNone {
		t.Errorf("progress after cancel = %+v, want idle", p)
	}
	if logs, awards, _ := rep.calls(); logs+awards != 0 {
		t.Error("cancel touched the sink")
	}
	if _, err := f.LogSet(ctx, plan.Sessions[0].Exercises[0].ID, 1, SetInput{Reps: 10}); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("LogSet after cancel: err = %v, want ErrNoActiveSession", err)
	}
}

// TestSessionsOnePerUser verifies each user gets their own flow and anonymous
// callers are refused.
func TestSessionsOnePerUser(t *testing.T) {
	plan := testPlan("1")
	s := NewSessions(newFakeCatalog(plan), ctxIdentity{}, &fakeReporter{}, DefaultPolicy(), discardLog)

	alice := withUser(context.Background(), 1)
	bob := withUser(context.Background(), 2)

	fa, err := s.For(alice)
	if err != nil {
		t.Fatal(err)
	}
	fb, err := s.For(bob)
	if err != nil {
		t.Fatal(err)
	}
	if fa == fb {
		t.Error("two users share a flow")
	}
	again, _ := s.For(alice)
	if again != fa {
		t.Error("same user got a new flow")
	}

	if _, _, err := fa.Start(alice, plan.ID, plan.Sessions[0].ID); err != nil {
		t.Fatal(err)
	}
	if fb.Progress().Active {
		t.Error("starting alice's session activated bob's")
	}

	if _, err := s.For(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous For: err = %v, want ErrUnauthenticated", err)
	}
}

// TestSessionsRestoreCheckpoint verifies a new registry resumes a checkpointed
// session at the first unfinished exercise.
func TestSessionsRestoreCheckpoint(t *testing.T) {
	plan := testPlan("1", "2")
	catalog := newFakeCatalog(plan)
	cp := newMemCheckpoint()
	ctx := withUser(context.Background(), 1)
	first := plan.Sessions[0].Exercises[0].ID
	second := plan.Sessions[0].Exercises[1].ID

	before := NewSessions(catalog, ctxIdentity{}, &fakeReporter{}, DefaultPolicy(), discardLog)
	before.SetCheckpointer(cp)
	f, _ := before.For(ctx)
	if _, _, err := f.Start(ctx, plan.ID, plan.Sessions[0].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.LogSet(ctx, first, 0, SetInput{Reps: 10}); err != nil {
		t.Fatal(err)
	}

	after := NewSessions(catalog, ctxIdentity{}, &fakeReporter{}, DefaultPolicy(), discardLog)
	after.SetCheckpointer(cp)
	resumed, err := after.For(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p := resumed.Progress()
	if !p.Active {
		t.Fatal("checkpointed session not resumed")
	}
	if p.CurrentExerciseID == nil || *p.CurrentExerciseID != second || p.CurrentSet != 0 {
		t.Errorf("resumed at %v/%d, want second exercise set 0", p.CurrentExerciseID, p.CurrentSet)
	}
}
