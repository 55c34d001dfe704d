package workout

import (
	"context"

	"github.com/claude/freecoach/internal/models"
	"github.com/google/uuid"
)

// Catalog resolves the training plans assigned to students. Plans assigned
// to anyone other than userID are reported as ErrNotFound.
type Catalog interface {
	GetUserPlan(ctx context.Context, userID int, planID uuid.UUID) (*models.TrainingPlan, error)
	GetUserSession(ctx context.Context, userID int, planID, sessionID uuid.UUID) (*models.Session, error)
}

// Identity resolves the current user. Implementations return ErrUnauthenticated
// when nobody is signed in.
type Identity interface {
	CurrentUserID(ctx context.Context) (int, error)
}

// Reporter is the persistence sink for finished sessions.
type Reporter interface {
	RecordWorkoutLog(ctx context.Context, row models.WorkoutLogRow) error
	AwardPoints(ctx context.Context, userID, points int, reason string) error
	UpdateStreak(ctx context.Context, userID int) error
}

// Checkpointer stores the active session outside the process so it can be
// restored after a restart.
type Checkpointer interface {
	Save(ctx context.Context, s *ActiveSession) error
	Load(ctx context.Context, userID int) (*ActiveSession, error)
	Delete(ctx context.Context, userID int) error
}
