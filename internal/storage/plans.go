package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/workout"
)

// ErrPlanConflict is returned when an upload would take over rows that
// belong to another student or another plan.
var ErrPlanConflict = errors.New("plan conflict")

const planColumns = `p.id, p.user_id, u.login, p.name, p.difficulty, p.duration_weeks, p.sessions_per_week`

// UpsertPlan writes a plan with its sessions and exercises in a single
// transaction. An existing plan with the same ID is replaced wholesale as
// long as it stays with the same student; reassigning a plan, or reusing
// session or exercise ids of another plan, fails with ErrPlanConflict.
func (db *DB) UpsertPlan(ctx context.Context, plan models.TrainingPlan) error {
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if err := checkPlanConflicts(ctx, tx, plan); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO training_plans (id, user_id, name, difficulty, duration_weeks, sessions_per_week)
			 VALUES ($1,$2,$3,$4,$5,$6)
			 ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				difficulty = EXCLUDED.difficulty,
				duration_weeks = EXCLUDED.duration_weeks,
				sessions_per_week = EXCLUDED.sessions_per_week,
				updated_at = NOW()`,
			plan.ID, plan.UserID, plan.Name, string(plan.Difficulty), plan.DurationWeeks, plan.SessionsPerWeek)
		if err != nil {
			return fmt.Errorf("upserting plan %s: %w", plan.ID, err)
		}

		// Exercises go with their sessions through ON DELETE CASCADE.
		if _, err := tx.Exec(ctx, `DELETE FROM plan_sessions WHERE plan_id = $1`, plan.ID); err != nil {
			return fmt.Errorf("clearing sessions of plan %s: %w", plan.ID, err)
		}
		if len(plan.Sessions) == 0 {
			return nil
		}

		sessionArgs := make([]any, 0, len(plan.Sessions)*5)
		var exerciseArgs []any
		var exerciseRows int
		for i, s := range plan.Sessions {
			sessionArgs = append(sessionArgs, s.ID, plan.ID, i, s.Name, s.Notes)
			for j, e := range s.Exercises {
				exerciseArgs = append(exerciseArgs, e.ID, s.ID, j, e.Name, e.Category, e.Sets,
					e.Reps, e.Weight, e.DurationSeconds, e.RestSeconds, e.Notes)
				exerciseRows++
			}
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO plan_sessions (id, plan_id, position, name, notes) VALUES `+
				placeholders(len(plan.Sessions), 5), sessionArgs...)
		if err != nil {
			return fmt.Errorf("inserting sessions of plan %s: %w", plan.ID, err)
		}
		if exerciseRows == 0 {
			return nil
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO plan_exercises (id, session_id, position, name, category, sets, reps,
			 weight, duration_seconds, rest_seconds, notes) VALUES `+
				placeholders(exerciseRows, 11), exerciseArgs...)
		if err != nil {
			return fmt.Errorf("inserting exercises of plan %s: %w", plan.ID, err)
		}
		return nil
	})
}

// checkPlanConflicts locks the stored plan row, if any, and rejects the
// upload when it would move the plan or its children away from their owner.
func checkPlanConflicts(ctx context.Context, tx pgx.Tx, plan models.TrainingPlan) error {
	var owner int
	err := tx.QueryRow(ctx,
		`SELECT user_id FROM training_plans WHERE id = $1 FOR UPDATE`, plan.ID).Scan(&owner)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return fmt.Errorf("checking plan %s: %w", plan.ID, err)
	case owner != plan.UserID:
		return fmt.Errorf("%w: plan %s is assigned to another student", ErrPlanConflict, plan.ID)
	}

	sessionIDs, exerciseIDs := childIDs(plan)
	var taken int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM plan_sessions WHERE id = ANY($1::uuid[]) AND plan_id <> $2`,
		sessionIDs, plan.ID).Scan(&taken)
	if err != nil {
		return fmt.Errorf("checking sessions of plan %s: %w", plan.ID, err)
	}
	if taken > 0 {
		return fmt.Errorf("%w: %d session ids of plan %s belong to another plan", ErrPlanConflict, taken, plan.ID)
	}
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM plan_exercises e JOIN plan_sessions s ON s.id = e.session_id
		 WHERE e.id = ANY($1::uuid[]) AND s.plan_id <> $2`,
		exerciseIDs, plan.ID).Scan(&taken)
	if err != nil {
		return fmt.Errorf("checking exercises of plan %s: %w", plan.ID, err)
	}
	if taken > 0 {
		return fmt.Errorf("%w: %d exercise ids of plan %s belong to another plan", ErrPlanConflict, taken, plan.ID)
	}
	return nil
}

// childIDs lists the session and exercise ids of plan in order.
func childIDs(plan models.TrainingPlan) (sessions, exercises []uuid.UUID) {
	sessions = make([]uuid.UUID, 0, len(plan.Sessions))
	exercises = []uuid.UUID{}
	for _, s := range plan.Sessions {
		sessions = append(sessions, s.ID)
		for _, e := range s.Exercises {
			exercises = append(exercises, e.ID)
		}
	}
	return sessions, exercises
}

// GetPlan returns a plan with all of its sessions and exercises in order.
func (db *DB) GetPlan(ctx context.Context, planID uuid.UUID) (*models.TrainingPlan, error) {
	var p models.TrainingPlan
	var difficulty string
	err := db.Pool.QueryRow(ctx,
		`SELECT `+planColumns+`
		 FROM training_plans p JOIN users u ON u.id = p.user_id
		 WHERE p.id = $1`, planID).
		Scan(&p.ID, &p.UserID, &p.AssignedTo, &p.Name, &difficulty, &p.DurationWeeks, &p.SessionsPerWeek)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("plan %s", planID))
	}
	p.Difficulty = models.Difficulty(difficulty)

	sessions, err := db.loadSessions(ctx, `s.plan_id = $1`, planID)
	if err != nil {
		return nil, err
	}
	p.Sessions = sessions
	return &p, nil
}

// GetUserPlan is GetPlan restricted to plans assigned to userID. Plans of
// other users are reported as not found.
func (db *DB) GetUserPlan(ctx context.Context, userID int, planID uuid.UUID) (*models.TrainingPlan, error) {
	p, err := db.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("plan %s: %w", planID, workout.ErrNotFound)
	}
	return p, nil
}

// GetUserSession returns a single session of a plan assigned to userID. A
// session under a different plan, or a plan of another user, is reported as
// not found.
func (db *DB) GetUserSession(ctx context.Context, userID int, planID, sessionID uuid.UUID) (*models.Session, error) {
	sessions, err := db.loadSessions(ctx,
		`s.plan_id = $1 AND s.id = $2
		 AND EXISTS (SELECT 1 FROM training_plans p WHERE p.id = s.plan_id AND p.user_id = $3)`,
		planID, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, notFound(pgx.ErrNoRows, fmt.Sprintf("session %s in plan %s", sessionID, planID))
	}
	return &sessions[0], nil
}

// ListPlans returns every plan assigned to a user, newest first.
func (db *DB) ListPlans(ctx context.Context, userID int) ([]models.TrainingPlan, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+planColumns+`
		 FROM training_plans p JOIN users u ON u.id = p.user_id
		 WHERE p.user_id = $1
		 ORDER BY p.created_at DESC, p.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying plans: %w", err)
	}
	defer rows.Close()

	var result []models.TrainingPlan
	for rows.Next() {
		var p models.TrainingPlan
		var difficulty string
		if err := rows.Scan(&p.ID, &p.UserID, &p.AssignedTo, &p.Name, &difficulty,
			&p.DurationWeeks, &p.SessionsPerWeek); err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		p.Difficulty = models.Difficulty(difficulty)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plans: %w", err)
	}

	for i := range result {
		sessions, err := db.loadSessions(ctx, `s.plan_id = $1`, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Sessions = sessions
	}
	return result, nil
}

// loadSessions reads sessions matching where together with their
// exercises. A LEFT JOIN keeps sessions that have no exercises.
func (db *DB) loadSessions(ctx context.Context, where string, args ...any) ([]models.Session, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT s.id, s.name, s.notes,
		        e.id, e.name, e.category, e.sets, e.reps, e.weight, e.duration_seconds, e.rest_seconds, e.notes
		 FROM plan_sessions s
		 LEFT JOIN plan_exercises e ON e.session_id = s.id
		 WHERE `+where+`
		 ORDER BY s.position, e.position`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		var (
			exID            *uuid.UUID
			exName, exCat   *string
			exSets, exNotes *string
			exReps, exRest  *int
			weight          *float64
			duration        *int
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Notes,
			&exID, &exName, &exCat, &exSets, &exReps, &weight, &duration, &exRest, &exNotes); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if n := len(sessions); n == 0 || sessions[n-1].ID != s.ID {
			s.Exercises = []models.Exercise{}
			sessions = append(sessions, s)
		}
		if exID == nil {
			continue
		}
		last := &sessions[len(sessions)-1]
		last.Exercises = append(last.Exercises, models.Exercise{
			ID:              *exID,
			Name:            deref(exName),
			Category:        deref(exCat),
			Sets:            deref(exSets),
			Reps:            deref(exReps),
			Weight:          weight,
			DurationSeconds: duration,
			RestSeconds:     deref(exRest),
			Notes:           deref(exNotes),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
