package workout

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/claude/freecoach/internal/models"
	"github.com/google/uuid"
)

// ActiveSession is the transient record of a session in progress.
// It is owned by a Runner; callers only ever see copies.
type ActiveSession struct {
	LogID     uuid.UUID `json:"log_id"`
	UserID    int       `json:"user_id"`
	PlanID    uuid.UUID `json:"plan_id"`
	SessionID uuid.UUID `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	// FinalizedAt is set by the first CompleteWorkout attempt and reused by
	// retries, so every attempt reports the same duration.
	FinalizedAt time.Time `json:"finalized_at,omitzero"`

	// ExerciseOrder is the session's exercise order at start.
	ExerciseOrder []uuid.UUID `json:"exercise_order"`
	// CompletedExerciseIDs holds each finished exercise once, in completion order.
	CompletedExerciseIDs []uuid.UUID                   `json:"completed_exercise_ids"`
	ExerciseLogs         map[uuid.UUID][]models.SetLog `json:"exercise_logs"`
}

var errStaleCheckpoint = errors.New("stale checkpoint")

func newActiveSession(userID int, planID uuid.UUID, session *models.Session, now time.Time) *ActiveSession {
	s := &ActiveSession{
		LogID:                uuid.New(),
		UserID:               userID,
		PlanID:               planID,
		SessionID:            session.ID,
		StartedAt:            now,
		ExerciseOrder:        make([]uuid.UUID, 0, len(session.Exercises)),
		CompletedExerciseIDs: []uuid.UUID{},
		ExerciseLogs:         make(map[uuid.UUID][]models.SetLog, len(session.Exercises)),
	}
	for _, ex := range session.Exercises {
		sets := make([]models.SetLog, ParseSetCount(ex.Sets))
		for i := range sets {
			sets[i] = models.SetLog{Reps: ex.Reps, Weight: copyFloat(ex.Weight)}
		}
		s.ExerciseOrder = append(s.ExerciseOrder, ex.ID)
		s.ExerciseLogs[ex.ID] = sets
	}
	return s
}

// IsCompleted reports whether the exercise has been marked finished.
func (s *ActiveSession) IsCompleted(exerciseID uuid.UUID) bool {
	return slices.Contains(s.CompletedExerciseIDs, exerciseID)
}

// SetsDone reports whether every set of the exercise is completed.
func (s *ActiveSession) SetsDone(exerciseID uuid.UUID) bool {
	sets, ok := s.ExerciseLogs[exerciseID]
	if !ok {
		return false
	}
	for _, set := range sets {
		if !set.Completed {
			return false
		}
	}
	return true
}

// NextOpenSet returns the index of the first uncompleted set, or -1.
func (s *ActiveSession) NextOpenSet(exerciseID uuid.UUID) int {
	for i, set := range s.ExerciseLogs[exerciseID] {
		if !set.Completed {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy.
func (s *ActiveSession) Clone() *ActiveSession {
	if s == nil {
		return nil
	}
	c := *s
	c.ExerciseOrder = slices.Clone(s.ExerciseOrder)
	c.CompletedExerciseIDs = slices.Clone(s.CompletedExerciseIDs)
	c.ExerciseLogs = cloneLogs(s.ExerciseLogs)
	return &c
}

// matches checks a restored session against the session definition it claims
// to run. Checkpoints written against an edited plan are discarded.
func (s *ActiveSession) matches(session *models.Session) error {
	if len(s.ExerciseLogs) != len(session.Exercises) {
		return fmt.Errorf("%w: %d exercises, session has %d", errStaleCheckpoint, len(s.ExerciseLogs), len(session.Exercises))
	}
	for _, ex := range session.Exercises {
		sets, ok := s.ExerciseLogs[ex.ID]
		if !ok {
			return fmt.Errorf("%w: missing exercise %s", errStaleCheckpoint, ex.ID)
		}
		if want := ParseSetCount(ex.Sets); len(sets) != want {
			return fmt.Errorf("%w: %d sets for exercise %s, want %d", errStaleCheckpoint, len(sets), ex.ID, want)
		}
	}
	return nil
}

func cloneLogs(in map[uuid.UUID][]models.SetLog) map[uuid.UUID][]models.SetLog {
	out := make(map[uuid.UUID][]models.SetLog, len(in))
	for id, sets := range in {
		cp := make([]models.SetLog, len(sets))
		for i, set := range sets {
			cp[i] = models.SetLog{Reps: set.Reps, Weight: copyFloat(set.Weight), Completed: set.Completed}
		}
		out[id] = cp
	}
	return out
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
