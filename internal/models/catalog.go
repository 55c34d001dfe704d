package models

import "github.com/google/uuid"

// Difficulty is the tier a training plan is written for.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// TrainingPlan is an ordered collection of sessions assigned to a student.
type TrainingPlan struct {
	ID              uuid.UUID  `json:"id" yaml:"id"`
	UserID          int        `json:"user_id" yaml:"-"`
	AssignedTo      string     `json:"assigned_to,omitempty" yaml:"assigned_to"`
	Name            string     `json:"name" yaml:"name"`
	Difficulty      Difficulty `json:"difficulty" yaml:"difficulty"`
	DurationWeeks   int        `json:"duration_weeks" yaml:"duration_weeks"`
	SessionsPerWeek int        `json:"sessions_per_week" yaml:"sessions_per_week"`
	Sessions        []Session  `json:"sessions" yaml:"sessions"`
}

// Session finds a session of the plan by ID.
func (p *TrainingPlan) Session(id uuid.UUID) (*Session, bool) {
	for i := range p.Sessions {
		if p.Sessions[i].ID == id {
			return &p.Sessions[i], true
		}
	}
	return nil, false
}

// Session is one planned workout: an ordered list of exercises.
type Session struct {
	ID        uuid.UUID  `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Notes     string     `json:"notes,omitempty" yaml:"notes"`
	Exercises []Exercise `json:"exercises" yaml:"exercises"`
}

// Exercise is a single planned movement within a session.
// Sets is kept as the raw string the trainer entered; see workout.ParseSetCount.
type Exercise struct {
	ID              uuid.UUID `json:"id" yaml:"id"`
	Name            string    `json:"name" yaml:"name"`
	Category        string    `json:"category,omitempty" yaml:"category"`
	Sets            string    `json:"sets" yaml:"sets"`
	Reps            int       `json:"reps" yaml:"reps"`
	Weight          *float64  `json:"weight,omitempty" yaml:"weight"`
	DurationSeconds *int      `json:"duration_seconds,omitempty" yaml:"duration_seconds"`
	RestSeconds     int       `json:"rest_seconds" yaml:"rest_seconds"`
	Notes           string    `json:"notes,omitempty" yaml:"notes"`
}
