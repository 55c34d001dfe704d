// Package catalog holds training plans in memory and reads them from YAML
// plan files written by trainers.
package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/workout"
	"github.com/google/uuid"
)

// Memory is an in-memory workout.Catalog.
type Memory struct {
	mu    sync.RWMutex
	plans map[uuid.UUID]models.TrainingPlan
	order []uuid.UUID
}

var _ workout.Catalog = (*Memory)(nil)

// NewMemory creates a catalog holding the given plans.
func NewMemory(plans ...models.TrainingPlan) *Memory {
	m := &Memory{plans: make(map[uuid.UUID]models.TrainingPlan)}
	for _, p := range plans {
		m.Put(p)
	}
	return m
}

// Put adds or replaces a plan.
func (m *Memory) Put(plan models.TrainingPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[plan.ID]; !ok {
		m.order = append(m.order, plan.ID)
	}
	m.plans[plan.ID] = clonePlan(plan)
}

// GetPlan returns a plan whoever it is assigned to.
func (m *Memory) GetPlan(_ context.Context, planID uuid.UUID) (*models.TrainingPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[planID]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", planID, workout.ErrNotFound)
	}
	cp := clonePlan(p)
	return &cp, nil
}

// GetUserSession implements workout.Catalog.
func (m *Memory) GetUserSession(ctx context.Context, userID int, planID, sessionID uuid.UUID) (*models.Session, error) {
	p, err := m.GetUserPlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	s, ok := p.Session(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s in plan %s: %w", sessionID, planID, workout.ErrNotFound)
	}
	return s, nil
}

// GetUserPlan implements workout.Catalog. It returns a plan only when it is
// assigned to userID.
func (m *Memory) GetUserPlan(ctx context.Context, userID int, planID uuid.UUID) (*models.TrainingPlan, error) {
	p, err := m.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("plan %s: %w", planID, workout.ErrNotFound)
	}
	return p, nil
}

// ListPlans returns the plans assigned to a user in insertion order.
func (m *Memory) ListPlans(_ context.Context, userID int) ([]models.TrainingPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.TrainingPlan
	for _, id := range m.order {
		if p := m.plans[id]; p.UserID == userID {
			out = append(out, clonePlan(p))
		}
	}
	return out, nil
}

func clonePlan(p models.TrainingPlan) models.TrainingPlan {
	p.Sessions = slices.Clone(p.Sessions)
	for i := range p.Sessions {
		p.Sessions[i].Exercises = slices.Clone(p.Sessions[i].Exercises)
	}
	return p
}
