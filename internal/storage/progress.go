package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/claude/freecoach/internal/gamification"
)

// AwardPoints credits points to a user. The (user_id, reason) pair is
// unique, so awarding the same reason twice keeps the first award.
func (db *DB) AwardPoints(ctx context.Context, userID, points int, reason string) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO point_awards (user_id, points, reason) VALUES ($1,$2,$3)
		 ON CONFLICT (user_id, reason) DO NOTHING`,
		userID, points, reason)
	if err != nil {
		return fmt.Errorf("awarding %d points to user %d: %w", points, userID, err)
	}
	return nil
}

// UpdateStreak records activity for today. The row is locked for the
// read-modify-write so two finishes on the same day count once.
func (db *DB) UpdateStreak(ctx context.Context, userID int) error {
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		s, err := scanStreak(tx.QueryRow(ctx,
			`SELECT current_streak, longest_streak, last_activity_date
			 FROM user_streaks WHERE user_id = $1 FOR UPDATE`, userID))
		if err != nil {
			return fmt.Errorf("reading streak of user %d: %w", userID, err)
		}

		next := gamification.NextStreak(s, time.Now())
		_, err = tx.Exec(ctx,
			`INSERT INTO user_streaks (user_id, current_streak, longest_streak, last_activity_date)
			 VALUES ($1,$2,$3,$4)
			 ON CONFLICT (user_id) DO UPDATE SET
				current_streak = EXCLUDED.current_streak,
				longest_streak = EXCLUDED.longest_streak,
				last_activity_date = EXCLUDED.last_activity_date`,
			userID, next.Current, next.Longest, next.LastActivity)
		if err != nil {
			return fmt.Errorf("writing streak of user %d: %w", userID, err)
		}
		return nil
	})
}

// ProgressSummary is a user's standing: level, points, and streak.
type ProgressSummary struct {
	gamification.LevelProgress
	CurrentStreak     int        `json:"current_streak"`
	LongestStreak     int        `json:"longest_streak"`
	LastActivityDate  *time.Time `json:"last_activity_date,omitempty"`
	WorkoutsCompleted int        `json:"workouts_completed"`
}

// GetProgress sums a user's points and reads their streak. Users without
// any activity get level 1 and a zero streak.
func (db *DB) GetProgress(ctx context.Context, userID int) (*ProgressSummary, error) {
	var points, workouts int
	err := db.Pool.QueryRow(ctx,
		`SELECT
			(SELECT COALESCE(SUM(points), 0) FROM point_awards WHERE user_id = $1),
			(SELECT COUNT(*) FROM workout_logs WHERE user_id = $1)`, userID).
		Scan(&points, &workouts)
	if err != nil {
		return nil, fmt.Errorf("querying points of user %d: %w", userID, err)
	}

	s, err := scanStreak(db.Pool.QueryRow(ctx,
		`SELECT current_streak, longest_streak, last_activity_date
		 FROM user_streaks WHERE user_id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("reading streak of user %d: %w", userID, err)
	}
	return summarize(points, workouts, s), nil
}

func summarize(points, workouts int, s gamification.Streak) *ProgressSummary {
	p := &ProgressSummary{
		LevelProgress:     gamification.Progress(points),
		CurrentStreak:     s.Current,
		LongestStreak:     s.Longest,
		WorkoutsCompleted: workouts,
	}
	if !s.LastActivity.IsZero() {
		day := s.LastActivity
		p.LastActivityDate = &day
	}
	return p
}

// scanStreak reads a user_streaks row. No row means no activity yet.
func scanStreak(row pgx.Row) (gamification.Streak, error) {
	var s gamification.Streak
	var last *time.Time
	if err := row.Scan(&s.Current, &s.Longest, &last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return gamification.Streak{}, nil
		}
		return gamification.Streak{}, err
	}
	if last != nil {
		// DATE columns come back as UTC midnight; streak days are local.
		y, m, d := last.Date()
		s.LastActivity = time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	}
	return s, nil
}
