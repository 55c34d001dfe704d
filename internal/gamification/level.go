// Package gamification holds the pure point, level, and streak rules.
package gamification

import (
	"math"
	"time"
)

// BaseThreshold is the number of points needed to leave level 1. Each
// following level needs 1.5x (floored) the points of the one before it.
const BaseThreshold = 100

// Level maps cumulative points to a level, starting at 1. Negative totals are level 1.
func Level(points int) int {
	level, _, _ := curve(points)
	return level
}

// LevelProgress describes where a point total sits on the level curve.
type LevelProgress struct {
	Level         int `json:"level"`
	Points        int `json:"points"`
	LevelFloor    int `json:"level_floor"`
	NextThreshold int `json:"next_threshold"`
}

// Progress returns the level for points and the thresholds around it.
func Progress(points int) LevelProgress {
	level, floor, next := curve(points)
	return LevelProgress{Level: level, Points: points, LevelFloor: floor, NextThreshold: next}
}

// curve walks the cumulative thresholds up to points. Once the following
// threshold no longer fits in an int it is reported as math.MaxInt and the
// walk stops, so every total maps to a level.
func curve(points int) (level, floor, next int) {
	level, step, next := 1, BaseThreshold, BaseThreshold
	for points >= next {
		level++
		floor = next
		grow := step / 2
		if step > math.MaxInt-grow || step+grow > math.MaxInt-next {
			return level, floor, math.MaxInt
		}
		step += grow
		next += step
	}
	return level, floor, next
}

// Streak is the consecutive-days record of a user.
type Streak struct {
	Current      int
	Longest      int
	LastActivity time.Time // zero when the user never trained
}

// NextStreak applies one day of activity on today to s. Training twice on the
// same day does not extend the streak; missing a day resets it to 1.
func NextStreak(s Streak, today time.Time) Streak {
	day := truncateDay(today)
	if s.LastActivity.IsZero() {
		s.Current = 1
		s.LastActivity = day
	} else {
		last := truncateDay(s.LastActivity)
		switch {
		case !day.After(last):
			// Same day, or a clock that moved backwards.
			s.Current = max(s.Current, 1)
			day = last
		case last.AddDate(0, 0, 1).Equal(day):
			s.Current++
		default:
			s.Current = 1
		}
		s.LastActivity = day
	}
	s.Longest = max(s.Longest, s.Current)
	return s
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
