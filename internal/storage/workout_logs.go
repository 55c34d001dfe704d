package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/models"
)

// RecordWorkoutLog inserts a finished session. Re-recording the same log ID
// is a no-op so a retried finalize never writes two rows.
func (db *DB) RecordWorkoutLog(ctx context.Context, row models.WorkoutLogRow) error {
	logs, err := encodeExerciseLogs(row.ExerciseLogs)
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx,
		`INSERT INTO workout_logs (id, user_id, plan_id, session_id, duration_minutes,
		 exercises_completed, exercise_logs, completed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id) DO NOTHING`,
		row.ID, row.UserID, row.PlanID, row.SessionID, row.DurationMinutes,
		row.ExercisesCompleted, logs, row.CompletedAt)
	if err != nil {
		return fmt.Errorf("inserting workout log %s: %w", row.ID, err)
	}
	return nil
}

// QueryWorkoutLogs returns a user's finished sessions in [start, end), newest first.
func (db *DB) QueryWorkoutLogs(ctx context.Context, start, end time.Time, userID int) ([]models.WorkoutLogRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, plan_id, session_id, duration_minutes, exercises_completed,
		        exercise_logs, completed_at
		 FROM workout_logs
		 WHERE user_id = $1 AND completed_at >= $2 AND completed_at < $3
		 ORDER BY completed_at DESC`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying workout logs: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutLogRow
	for rows.Next() {
		var r models.WorkoutLogRow
		var raw []byte
		if err := rows.Scan(&r.ID, &r.UserID, &r.PlanID, &r.SessionID, &r.DurationMinutes,
			&r.ExercisesCompleted, &raw, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning workout log: %w", err)
		}
		if r.ExerciseLogs, err = decodeExerciseLogs(raw); err != nil {
			return nil, fmt.Errorf("workout log %s: %w", r.ID, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workout logs: %w", err)
	}
	return result, nil
}

func encodeExerciseLogs(logs map[uuid.UUID][]models.SetLog) ([]byte, error) {
	if logs == nil {
		logs = map[uuid.UUID][]models.SetLog{}
	}
	b, err := json.Marshal(logs)
	if err != nil {
		return nil, fmt.Errorf("encoding exercise logs: %w", err)
	}
	return b, nil
}

func decodeExerciseLogs(raw []byte) (map[uuid.UUID][]models.SetLog, error) {
	logs := map[uuid.UUID][]models.SetLog{}
	if len(raw) == 0 {
		return logs, nil
	}
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, fmt.Errorf("decoding exercise logs: %w", err)
	}
	return logs, nil
}
