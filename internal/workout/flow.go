package workout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/resttimer"
	"github.com/google/uuid"
)

// Progress is what a client renders while a session runs.
type Progress struct {
	Active             bool                          `json:"active"`
	PlanID             uuid.UUID                     `json:"plan_id,omitzero"`
	SessionID          uuid.UUID                     `json:"session_id,omitzero"`
	StartedAt          time.Time                     `json:"started_at,omitzero"`
	CurrentExerciseID  *uuid.UUID                    `json:"current_exercise_id,omitempty"`
	CurrentSet         int                           `json:"current_set"`
	ExercisesCompleted int                           `json:"exercises_completed"`
	ExercisesTotal     int                           `json:"exercises_total"`
	ExerciseLogs       map[uuid.UUID][]models.SetLog `json:"exercise_logs,omitempty"`
	Rest               resttimer.Status              `json:"rest"`
}

// Step is the outcome of logging a set or finishing an exercise. Summary is
// set when that step finalized the session.
type Step struct {
	Progress Progress `json:"progress"`
	Summary  *Summary `json:"summary,omitempty"`
}

// Flow layers the rest countdown and exercise ordering over a Runner.
// The Runner stays free of timers; Flow only mutates it through its operations.
type Flow struct {
	runner *Runner
	timer  *resttimer.Timer
	log    *slog.Logger

	mu      sync.Mutex
	session *models.Session
	current int
}

// NewFlow creates a Flow around runner and timer.
func NewFlow(runner *Runner, timer *resttimer.Timer, log *slog.Logger) *Flow {
	return &Flow{runner: runner, timer: timer, log: log}
}

// Start begins a session, replacing any session in progress.
func (f *Flow) Start(ctx context.Context, planID, sessionID uuid.UUID) (*models.TrainingPlan, Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	plan, session, err := f.runner.StartWorkout(ctx, planID, sessionID)
	if err != nil {
		return nil, Progress{}, err
	}
	f.timer.Stop()
	f.session = session
	f.current = 0
	return plan, f.progressLocked(), nil
}

// Resume reloads a checkpointed session, if the runner has one.
func (f *Flow) Resume(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, session, ok, err := f.runner.Restore(ctx)
	if err != nil || !ok {
		return false, err
	}
	f.session = session
	f.current = 0
	if active, ok := f.runner.Active(); ok {
		f.advanceLocked(active, 0)
	}
	return true, nil
}

// LogSet completes one set, then starts the matching rest countdown. The
// final set of an exercise completes the exercise; the final set of the
// session finalizes it.
func (f *Flow) LogSet(ctx context.Context, exerciseID uuid.UUID, setIndex int, in SetInput) (*Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	before, ok := f.runner.Active()
	if !ok || f.session == nil {
		return nil, ErrNoActiveSession
	}
	alreadyDone := before.IsCompleted(exerciseID)

	if err := f.runner.CompleteSet(ctx, exerciseID, setIndex, in); err != nil {
		return nil, err
	}
	active, ok := f.runner.Active()
	if !ok {
		return nil, ErrNoActiveSession
	}

	idx := f.indexOf(exerciseID)
	if alreadyDone {
		// Correcting a set of a finished exercise does not restart rest.
		return &Step{Progress: f.progressLocked()}, nil
	}
	if !active.SetsDone(exerciseID) {
		f.current = idx
		f.timer.Start(resttimer.KindSet, f.setRest(idx))
		return &Step{Progress: f.progressLocked()}, nil
	}

	if err := f.runner.CompleteExercise(ctx, exerciseID); err != nil {
		return nil, err
	}
	return f.afterExerciseLocked(ctx, idx)
}

// CompleteExercise marks an exercise done outside of LogSet, for clients
// that track sets themselves.
func (f *Flow) CompleteExercise(ctx context.Context, exerciseID uuid.UUID) (*Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	before, ok := f.runner.Active()
	if !ok || f.session == nil {
		return nil, ErrNoActiveSession
	}
	if err := f.runner.CompleteExercise(ctx, exerciseID); err != nil {
		return nil, err
	}
	if before.IsCompleted(exerciseID) {
		return &Step{Progress: f.progressLocked()}, nil
	}
	return f.afterExerciseLocked(ctx, f.indexOf(exerciseID))
}

// SkipRest ends the running rest countdown.
func (f *Flow) SkipRest() Progress {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timer.Skip()
	return f.progressLocked()
}

// Finish finalizes the session explicitly. On failure the session stays
// active so Finish can be retried.
func (f *Flow) Finish(ctx context.Context) (*Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finishLocked(ctx)
}

// Cancel discards the session and any running rest.
func (f *Flow) Cancel(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timer.Stop()
	f.runner.CancelWorkout(ctx)
	f.session = nil
	f.current = 0
}

// Progress returns the current view of the session.
func (f *Flow) Progress() Progress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progressLocked()
}

// WaitRest blocks until the current rest countdown ends.
func (f *Flow) WaitRest(ctx context.Context) error {
	return f.timer.Wait(ctx)
}

func (f *Flow) afterExerciseLocked(ctx context.Context, idx int) (*Step, error) {
	active, ok := f.runner.Active()
	if !ok {
		return nil, ErrNoActiveSession
	}
	if len(active.CompletedExerciseIDs) >= len(active.ExerciseOrder) {
		summary, err := f.finishLocked(ctx)
		if err != nil {
			return nil, err
		}
		return &Step{Progress: f.progressLocked(), Summary: summary}, nil
	}

	f.timer.Start(resttimer.KindExercise, f.runner.Policy().ExerciseRest)
	f.advanceLocked(active, idx+1)
	return &Step{Progress: f.progressLocked()}, nil
}

func (f *Flow) finishLocked(ctx context.Context) (*Summary, error) {
	summary, err := f.runner.CompleteWorkout(ctx)
	if err != nil {
		return nil, err
	}
	f.timer.Stop()
	f.session = nil
	f.current = 0
	return summary, nil
}

// advanceLocked moves current to the first unfinished exercise at or after
// from, wrapping around to pick up exercises the student skipped.
func (f *Flow) advanceLocked(active *ActiveSession, from int) {
	n := len(f.session.Exercises)
	for i := range n {
		idx := (from + i) % n
		if !active.IsCompleted(f.session.Exercises[idx].ID) {
			f.current = idx
			return
		}
	}
}

func (f *Flow) indexOf(exerciseID uuid.UUID) int {
	for i, ex := range f.session.Exercises {
		if ex.ID == exerciseID {
			return i
		}
	}
	return f.current
}

func (f *Flow) setRest(idx int) time.Duration {
	if idx >= 0 && idx < len(f.session.Exercises) {
		if secs := f.session.Exercises[idx].RestSeconds; secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return f.runner.Policy().SetRest
}

func (f *Flow) progressLocked() Progress {
	p := Progress{Rest: f.timer.Status(), CurrentSet: -1}
	active, ok := f.runner.Active()
	if !ok || f.session == nil {
		return p
	}

	p.Active = true
	p.PlanID = active.PlanID
	p.SessionID = active.SessionID
	p.StartedAt = active.StartedAt
	p.ExercisesCompleted = len(active.CompletedExerciseIDs)
	p.ExercisesTotal = len(active.ExerciseOrder)
	p.ExerciseLogs = active.ExerciseLogs
	if f.current < len(f.session.Exercises) {
		id := f.session.Exercises[f.current].ID
		if !active.IsCompleted(id) {
			p.CurrentExerciseID = &id
			p.CurrentSet = active.NextOpenSet(id)
		}
	}
	return p
}

// Sessions keeps one Flow per user, so each student has at most one session
// in progress.
type Sessions struct {
	catalog    Catalog
	identity   Identity
	reporter   Reporter
	checkpoint Checkpointer
	policy     Policy
	restTick   time.Duration
	log        *slog.Logger

	mu    sync.Mutex
	flows map[int]*Flow
}

// NewSessions creates an empty registry.
func NewSessions(catalog Catalog, identity Identity, reporter Reporter, policy Policy, log *slog.Logger) *Sessions {
	return &Sessions{
		catalog:  catalog,
		identity: identity,
		reporter: reporter,
		policy:   policy,
		restTick: time.Second,
		log:      log,
		flows:    make(map[int]*Flow),
	}
}

// SetCheckpointer makes new flows checkpoint their sessions and restore them on creation.
func (s *Sessions) SetCheckpointer(cp Checkpointer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint = cp
}

// SetRestTick changes the countdown resolution of new flows.
func (s *Sessions) SetRestTick(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restTick = d
}

// For returns the current user's Flow, creating it on first use.
func (s *Sessions) For(ctx context.Context) (*Flow, error) {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.flows[userID]; ok {
		return f, nil
	}

	runner := NewRunner(s.catalog, s.identity, s.reporter, s.policy, s.log)
	f := NewFlow(runner, resttimer.New(s.restTick), s.log)
	if s.checkpoint != nil {
		runner.SetCheckpointer(s.checkpoint)
		if _, err := f.Resume(ctx); err != nil {
			s.log.Warn("restoring checkpoint failed", "user_id", userID, "error", err)
		}
	}
	s.flows[userID] = f
	return f, nil
}
