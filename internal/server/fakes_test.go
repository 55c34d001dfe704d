package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tailscale.com/client/tailscale/apitype"
	"tailscale.com/tailcfg"

	"github.com/claude/freecoach/internal/catalog"
	"github.com/claude/freecoach/internal/gamification"
	"github.com/claude/freecoach/internal/identity"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/storage"
	"github.com/claude/freecoach/internal/workout"
)

const testAPIKey = "test-key"

var discardLog = slog.New(slog.DiscardHandler)

// fakeStore is an in-memory Store and workout.Reporter.
type fakeStore struct {
	*catalog.Memory

	mu     sync.Mutex
	users  map[string]int
	logs   []models.WorkoutLogRow
	points map[int]int
	logErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		Memory: catalog.NewMemory(),
		users:  make(map[string]int),
		points: make(map[int]int),
	}
}

func (f *fakeStore) GetOrCreateUser(_ context.Context, login, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.users[login]; ok {
		return id, nil
	}
	id := len(f.users) + 1
	f.users[login] = id
	return id, nil
}

func (f *fakeStore) UpsertPlan(ctx context.Context, plan models.TrainingPlan) error {
	if stored, err := f.GetPlan(ctx, plan.ID); err == nil && stored.UserID != plan.UserID {
		return fmt.Errorf("%w: plan %s is assigned to another student", storage.ErrPlanConflict, plan.ID)
	}
	f.Put(plan)
	return nil
}

func (f *fakeStore) QueryWorkoutLogs(_ context.Context, start, end time.Time, userID int) ([]models.WorkoutLogRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WorkoutLogRow
	for _, l := range f.logs {
		if l.UserID == userID && !l.CompletedAt.Before(start) && l.CompletedAt.Before(end) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProgress(_ context.Context, userID int) (*storage.ProgressSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &storage.ProgressSummary{
		LevelProgress:     gamification.Progress(f.points[userID]),
		WorkoutsCompleted: len(f.logs),
	}, nil
}

func (f *fakeStore) RecordWorkoutLog(_ context.Context, row models.WorkoutLogRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logErr != nil {
		return f.logErr
	}
	f.logs = append(f.logs, row)
	return nil
}

func (f *fakeStore) AwardPoints(_ context.Context, userID, points int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points[userID] += points
	return nil
}

func (f *fakeStore) UpdateStreak(context.Context, int) error { return nil }

func (f *fakeStore) setLogErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logErr = err
}

// fakeWhois answers every lookup with the same tailnet user.
type fakeWhois struct {
	login, name string
	err         error
}

func (w fakeWhois) WhoIs(context.Context, string) (*apitype.WhoIsResponse, error) {
	if w.err != nil {
		return nil, w.err
	}
	return &apitype.WhoIsResponse{
		UserProfile: &tailcfg.UserProfile{LoginName: w.login, DisplayName: w.name},
	}, nil
}

func newTestServer(t *testing.T) (*Server, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	sessions := workout.NewSessions(store, identity.Context{}, store, workout.DefaultPolicy(), discardLog)
	return New(store, sessions, testAPIKey, discardLog), store
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// planFor renders a one-session plan assigned to login. Sets are given per exercise.
func planFor(login string, sets ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "plans:\n  - name: \"Test Plan\"\n    assigned_to: %q\n    sessions:\n      - name: \"Day A\"\n        exercises:\n", login)
	for i, s := range sets {
		fmt.Fprintf(&b, "          - name: \"Exercise %d\"\n            sets: %q\n            reps: 10\n            rest_seconds: 30\n", i+1, s)
	}
	return b.String()
}

// uploadPlan posts a plan file and returns the parsed plan with its derived IDs.
func uploadPlan(t *testing.T, h http.Handler, yamlBody string) models.TrainingPlan {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/plans", yamlBody, "X-API-Key", testAPIKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body)
	}
	plans, err := catalog.Parse(strings.NewReader(yamlBody))
	if err != nil {
		t.Fatal(err)
	}
	return plans[0]
}
