package workout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/freecoach/internal/models"
	"github.com/google/uuid"
)

// Summary is produced once when a session is finalized.
type Summary struct {
	DurationMinutes    int `json:"duration_minutes"`
	ExercisesCompleted int `json:"exercises_completed"`
	XPEarned           int `json:"xp_earned"`
}

// SetInput is what the student actually performed for a set.
type SetInput struct {
	Reps   int      `json:"reps"`
	Weight *float64 `json:"weight,omitempty"`
}

// Runner drives a single workout session from start to finish.
// At most one session is active per Runner; all operations are serialized.
type Runner struct {
	catalog    Catalog
	identity   Identity
	reporter   Reporter
	checkpoint Checkpointer
	policy     Policy
	log        *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	active *ActiveSession
}

// NewRunner creates an idle Runner.
func NewRunner(catalog Catalog, identity Identity, reporter Reporter, policy Policy, log *slog.Logger) *Runner {
	return &Runner{
		catalog:  catalog,
		identity: identity,
		reporter: reporter,
		policy:   policy,
		log:      log,
		now:      time.Now,
	}
}

// SetClock replaces the wall clock used for start and finish times.
func (r *Runner) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// SetCheckpointer enables durable checkpoints of the active session.
func (r *Runner) SetCheckpointer(cp Checkpointer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkpoint = cp
}

// Policy returns the runner's XP and rest policy.
func (r *Runner) Policy() Policy {
	return r.policy
}

// StartWorkout resolves the plan and session among the current user's plans
// and begins a fresh session, replacing any session already in progress.
func (r *Runner) StartWorkout(ctx context.Context, planID, sessionID uuid.UUID) (*models.TrainingPlan, *models.Session, error) {
	userID, err := r.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving user: %w", err)
	}

	plan, err := r.catalog.GetUserPlan(ctx, userID, planID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up plan %s: %w", planID, err)
	}
	session, err := r.catalog.GetUserSession(ctx, userID, planID, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up session %s: %w", sessionID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		r.log.Info("replacing active session",
			"user_id", r.active.UserID, "session_id", r.active.SessionID, "log_id", r.active.LogID)
	}
	r.active = newActiveSession(userID, plan.ID, session, r.now())
	r.saveCheckpoint(ctx)

	r.log.Info("workout started",
		"user_id", userID, "plan_id", plan.ID, "session_id", session.ID,
		"exercises", len(session.Exercises))
	return plan, session, nil
}

// CompleteSet records the performed reps and weight for one set and marks it completed.
func (r *Runner) CompleteSet(ctx context.Context, exerciseID uuid.UUID, setIndex int, in SetInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return ErrNoActiveSession
	}
	sets, ok := r.active.ExerciseLogs[exerciseID]
	if !ok {
		return fmt.Errorf("exercise %s: %w", exerciseID, ErrNotFound)
	}
	if setIndex < 0 || setIndex >= len(sets) {
		return fmt.Errorf("set %d of %d for exercise %s: %w", setIndex, len(sets), exerciseID, ErrIndexOutOfRange)
	}

	sets[setIndex] = models.SetLog{Reps: in.Reps, Weight: copyFloat(in.Weight), Completed: true}
	r.saveCheckpoint(ctx)
	return nil
}

// CompleteExercise marks an exercise finished. Marking it twice is a no-op.
func (r *Runner) CompleteExercise(ctx context.Context, exerciseID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return ErrNoActiveSession
	}
	if _, ok := r.active.ExerciseLogs[exerciseID]; !ok {
		return fmt.Errorf("exercise %s: %w", exerciseID, ErrNotFound)
	}
	if r.active.IsCompleted(exerciseID) {
		return nil
	}
	if !r.active.SetsDone(exerciseID) {
		return fmt.Errorf("exercise %s: %w", exerciseID, ErrIncompleteExercise)
	}

	r.active.CompletedExerciseIDs = append(r.active.CompletedExerciseIDs, exerciseID)
	r.saveCheckpoint(ctx)
	return nil
}

// CompleteWorkout persists the session and returns its summary. When the sink
// rejects a write the session stays active so the caller can retry.
func (r *Runner) CompleteWorkout(ctx context.Context) (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return nil, ErrNoActiveSession
	}
	s := r.active
	if s.FinalizedAt.IsZero() {
		s.FinalizedAt = r.now()
		r.saveCheckpoint(ctx)
	}
	completedAt := s.FinalizedAt

	elapsed := completedAt.Sub(s.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	summary := &Summary{
		DurationMinutes:    int(elapsed / time.Minute),
		ExercisesCompleted: len(s.CompletedExerciseIDs),
		XPEarned:           r.policy.XP(len(s.CompletedExerciseIDs)),
	}

	if r.policy.FinalizeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.FinalizeTimeout)
		defer cancel()
	}

	row := models.WorkoutLogRow{
		ID:                 s.LogID,
		UserID:             s.UserID,
		PlanID:             s.PlanID,
		SessionID:          s.SessionID,
		DurationMinutes:    summary.DurationMinutes,
		ExercisesCompleted: summary.ExercisesCompleted,
		ExerciseLogs:       cloneLogs(s.ExerciseLogs),
		CompletedAt:        completedAt,
	}
	if err := r.reporter.RecordWorkoutLog(ctx, row); err != nil {
		return nil, fmt.Errorf("%w: recording workout log: %w", ErrPersistence, err)
	}
	if err := r.reporter.AwardPoints(ctx, s.UserID, summary.XPEarned, PointsReason(s.LogID)); err != nil {
		return nil, fmt.Errorf("%w: awarding points: %w", ErrPersistence, err)
	}
	if err := r.reporter.UpdateStreak(ctx, s.UserID); err != nil {
		r.log.Warn("streak update failed", "user_id", s.UserID, "error", err)
	}

	r.active = nil
	r.deleteCheckpoint(ctx, s.UserID)

	r.log.Info("workout completed",
		"user_id", s.UserID, "log_id", s.LogID,
		"duration_minutes", summary.DurationMinutes,
		"exercises_completed", summary.ExercisesCompleted,
		"xp", summary.XPEarned)
	return summary, nil
}

// CancelWorkout discards the active session without persisting anything.
// Cancelling an idle runner does nothing.
func (r *Runner) CancelWorkout(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return
	}
	s := r.active
	r.active = nil
	r.deleteCheckpoint(ctx, s.UserID)
	r.log.Info("workout cancelled", "user_id", s.UserID, "log_id", s.LogID)
}

// Active returns a copy of the session in progress.
func (r *Runner) Active() (*ActiveSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil, false
	}
	return r.active.Clone(), true
}

// Restore reloads a checkpointed session for the current user. It reports
// false when there is nothing to restore or the checkpoint no longer matches
// the catalog.
func (r *Runner) Restore(ctx context.Context) (*models.TrainingPlan, *models.Session, bool, error) {
	r.mu.Lock()
	cp := r.checkpoint
	r.mu.Unlock()
	if cp == nil {
		return nil, nil, false, nil
	}

	userID, err := r.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, nil, false, fmt.Errorf("resolving user: %w", err)
	}
	saved, err := cp.Load(ctx, userID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("loading checkpoint: %w", err)
	}
	if saved == nil {
		return nil, nil, false, nil
	}

	plan, session, err := r.resolveCheckpoint(ctx, saved)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, errStaleCheckpoint) {
			return nil, nil, false, err
		}
		r.log.Warn("discarding stale checkpoint", "user_id", userID, "error", err)
		if err := cp.Delete(ctx, userID); err != nil {
			r.log.Warn("checkpoint delete failed", "user_id", userID, "error", err)
		}
		return nil, nil, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		// A session started while the checkpoint was loading wins.
		return nil, nil, false, nil
	}
	r.active = saved
	r.log.Info("workout restored", "user_id", userID, "log_id", saved.LogID)
	return plan, session, true, nil
}

func (r *Runner) resolveCheckpoint(ctx context.Context, saved *ActiveSession) (*models.TrainingPlan, *models.Session, error) {
	plan, err := r.catalog.GetUserPlan(ctx, saved.UserID, saved.PlanID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up plan %s: %w", saved.PlanID, err)
	}
	session, err := r.catalog.GetUserSession(ctx, saved.UserID, saved.PlanID, saved.SessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up session %s: %w", saved.SessionID, err)
	}
	if err := saved.matches(session); err != nil {
		return nil, nil, err
	}
	return plan, session, nil
}

// PointsReason is the award reason recorded for a workout log. It is unique
// per log so a retried finalize never awards twice.
func PointsReason(logID uuid.UUID) string {
	return "workout:" + logID.String()
}

// saveCheckpoint must be called with r.mu held.
func (r *Runner) saveCheckpoint(ctx context.Context) {
	if r.checkpoint == nil || r.active == nil {
		return
	}
	if err := r.checkpoint.Save(ctx, r.active); err != nil {
		r.log.Warn("checkpoint save failed", "user_id", r.active.UserID, "error", err)
	}
}

// deleteCheckpoint must be called with r.mu held.
func (r *Runner) deleteCheckpoint(ctx context.Context, userID int) {
	if r.checkpoint == nil {
		return
	}
	if err := r.checkpoint.Delete(ctx, userID); err != nil {
		r.log.Warn("checkpoint delete failed", "user_id", userID, "error", err)
	}
}
