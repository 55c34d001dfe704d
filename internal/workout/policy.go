package workout

import "time"

// Policy holds the tunable numbers of a session. The zero value is not useful;
// start from DefaultPolicy.
type Policy struct {
	BaseXP          int
	PerExerciseXP   int
	SetRest         time.Duration
	ExerciseRest    time.Duration
	FinalizeTimeout time.Duration
}

// DefaultPolicy returns the stock XP and rest settings.
func DefaultPolicy() Policy {
	return Policy{
		BaseXP:          50,
		PerExerciseXP:   5,
		SetRest:         60 * time.Second,
		ExerciseRest:    90 * time.Second,
		FinalizeTimeout: 15 * time.Second,
	}
}

// XP returns the experience points for a session with the given number of
// completed exercises.
func (p Policy) XP(completedExercises int) int {
	return p.BaseXP + completedExercises*p.PerExerciseXP
}
