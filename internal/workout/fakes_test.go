package workout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/freecoach/internal/models"
	"github.com/google/uuid"
)

var discardLog = slog.New(slog.DiscardHandler)

type fakeCatalog struct {
	plans map[uuid.UUID]*models.TrainingPlan
}

func newFakeCatalog(plans ...*models.TrainingPlan) *fakeCatalog {
	c := &fakeCatalog{plans: make(map[uuid.UUID]*models.TrainingPlan)}
	for _, p := range plans {
		c.plans[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) GetUserPlan(_ context.Context, userID int, planID uuid.UUID) (*models.TrainingPlan, error) {
	p, ok := c.plans[planID]
	if !ok || p.UserID != userID {
		return nil, ErrNotFound
	}
	return p, nil
}

func (c *fakeCatalog) GetUserSession(ctx context.Context, userID int, planID, sessionID uuid.UUID) (*models.Session, error) {
	p, err := c.GetUserPlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	s, ok := p.Session(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

type fakeIdentity struct {
	userID int
}

func (f fakeIdentity) CurrentUserID(context.Context) (int, error) {
	if f.userID == 0 {
		return 0, ErrUnauthenticated
	}
	return f.userID, nil
}

// ctxIdentity reads the user from a context key, like the HTTP layer does.
type ctxIdentity struct{}

type ctxUserKey struct{}

func withUser(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, ctxUserKey{}, id)
}

func (ctxIdentity) CurrentUserID(ctx context.Context) (int, error) {
	id, ok := ctx.Value(ctxUserKey{}).(int)
	if !ok {
		return 0, ErrUnauthenticated
	}
	return id, nil
}

type award struct {
	userID int
	points int
	reason string
}

type fakeReporter struct {
	mu        sync.Mutex
	logs      []models.WorkoutLogRow
	awards    []award
	streaks   int
	logErr    error
	awardErr  error
	streakErr error
	block     bool
}

func (r *fakeReporter) RecordWorkoutLog(ctx context.Context, row models.WorkoutLogRow) error {
	r.mu.Lock()
	block, err := r.block, r.logErr
	r.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, row)
	return nil
}

func (r *fakeReporter) AwardPoints(_ context.Context, userID, points int, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.awardErr != nil {
		return r.awardErr
	}
	r.awards = append(r.awards, award{userID, points, reason})
	return nil
}

func (r *fakeReporter) UpdateStreak(context.Context, int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streaks++
	return r.streakErr
}

func (r *fakeReporter) calls() (logs, awards, streaks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logs), len(r.awards), r.streaks
}

type memCheckpoint struct {
	mu    sync.Mutex
	saved map[int]*ActiveSession
	saves int
}

func newMemCheckpoint() *memCheckpoint {
	return &memCheckpoint{saved: make(map[int]*ActiveSession)}
}

func (m *memCheckpoint) Save(_ context.Context, s *ActiveSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[s.UserID] = s.Clone()
	m.saves++
	return nil
}

func (m *memCheckpoint) Load(_ context.Context, userID int) (*ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[userID].Clone(), nil
}

func (m *memCheckpoint) Delete(_ context.Context, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, userID)
	return nil
}

// fakeClock is a settable wall clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func float(f float64) *float64 { return &f }

// testPlan builds a plan with one session per call to exercises; each
// argument is the raw set count of one exercise.
func testPlan(sets ...string) *models.TrainingPlan {
	session := models.Session{ID: uuid.New(), Name: "Day A"}
	for i, s := range sets {
		session.Exercises = append(session.Exercises, models.Exercise{
			ID:   uuid.New(),
			Name: fmt.Sprintf("Exercise %d", i+1),
			Sets: s,
			Reps: 10,
		})
	}
	return &models.TrainingPlan{
		ID:              uuid.New(),
		UserID:          1,
		Name:            "Test Plan",
		Difficulty:      models.DifficultyBeginner,
		DurationWeeks:   4,
		SessionsPerWeek: 3,
		Sessions:        []models.Session{session},
	}
}

func newTestRunner(plan *models.TrainingPlan, rep *fakeReporter) *Runner {
	return NewRunner(newFakeCatalog(plan), fakeIdentity{userID: 1}, rep, DefaultPolicy(), discardLog)
}
