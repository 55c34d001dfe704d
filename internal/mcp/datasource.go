package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/storage"
	"github.com/claude/freecoach/internal/workout"
)

// DataSource abstracts the data layer for MCP tools. Local (in-process) and
// HTTPClient (remote via REST API) both satisfy it.
type DataSource interface {
	ListPlans(ctx context.Context, userID int) ([]models.TrainingPlan, error)
	GetUserPlan(ctx context.Context, userID int, planID uuid.UUID) (*models.TrainingPlan, error)
	QueryWorkoutLogs(ctx context.Context, start, end time.Time, userID int) ([]models.WorkoutLogRow, error)
	GetProgress(ctx context.Context, userID int) (*storage.ProgressSummary, error)
	ActiveWorkout(ctx context.Context, userID int) (*workout.Progress, error)
}

// Local serves MCP tools from the server process: stored data from the
// database, the session in progress from the live registry.
type Local struct {
	*storage.DB
	Sessions *workout.Sessions
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = Local{}

// ActiveWorkout returns the caller's session in progress. The registry
// resolves the user from ctx, so userID is only used by remote sources.
func (l Local) ActiveWorkout(ctx context.Context, _ int) (*workout.Progress, error) {
	f, err := l.Sessions.For(ctx)
	if err != nil {
		return nil, err
	}
	p := f.Progress()
	return &p, nil
}
