package models

import (
	"time"

	"github.com/google/uuid"
)

// SetLog is the record of one performed (or still planned) set.
type SetLog struct {
	Reps      int      `json:"reps"`
	Weight    *float64 `json:"weight,omitempty"`
	Completed bool     `json:"completed"`
}

// WorkoutLogRow is a row ready for insertion into the workout_logs table.
type WorkoutLogRow struct {
	ID                 uuid.UUID              `json:"id"`
	UserID             int                    `json:"user_id"`
	PlanID             uuid.UUID              `json:"plan_id"`
	SessionID          uuid.UUID              `json:"session_id"`
	DurationMinutes    int                    `json:"duration_minutes"`
	ExercisesCompleted int                    `json:"exercises_completed"`
	ExerciseLogs       map[uuid.UUID][]SetLog `json:"exercise_logs"`
	CompletedAt        time.Time              `json:"completed_at"`
}

// PointAwardRow is a row in the point_awards table.
type PointAwardRow struct {
	UserID    int       `json:"user_id"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	AwardedAt time.Time `json:"awarded_at"`
}

// StreakRow is a row in the user_streaks table.
type StreakRow struct {
	UserID           int        `json:"user_id"`
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
}
