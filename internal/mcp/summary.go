package mcp

import (
	"slices"
	"time"

	"github.com/claude/freecoach/internal/models"
)

// TrainingPeriod aggregates the finished workouts of one week or month.
type TrainingPeriod struct {
	Period             time.Time `json:"period"`
	Workouts           int       `json:"workouts"`
	Minutes            int       `json:"minutes"`
	ExercisesCompleted int       `json:"exercises_completed"`
	SetsCompleted      int       `json:"sets_completed"`
	Reps               int       `json:"reps"`
}

// summarizeLogs buckets logs by ISO week (starting Monday) or calendar month,
// oldest period first. Only completed sets count toward sets and reps.
func summarizeLogs(logs []models.WorkoutLogRow, bucket string) []TrainingPeriod {
	byPeriod := make(map[time.Time]*TrainingPeriod)
	for _, l := range logs {
		key := periodStart(l.CompletedAt, bucket)
		p, ok := byPeriod[key]
		if !ok {
			p = &TrainingPeriod{Period: key}
			byPeriod[key] = p
		}
		p.Workouts++
		p.Minutes += l.DurationMinutes
		p.ExercisesCompleted += l.ExercisesCompleted
		for _, sets := range l.ExerciseLogs {
			for _, s := range sets {
				if s.Completed {
					p.SetsCompleted++
					p.Reps += s.Reps
				}
			}
		}
	}

	out := make([]TrainingPeriod, 0, len(byPeriod))
	for _, p := range byPeriod {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b TrainingPeriod) int { return a.Period.Compare(b.Period) })
	return out
}

func periodStart(t time.Time, bucket string) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	if bucket == "month" {
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
