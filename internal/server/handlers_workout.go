package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/workout"
)

type startRequest struct {
	PlanID    uuid.UUID `json:"plan_id"`
	SessionID uuid.UUID `json:"session_id"`
}

type setRequest struct {
	ExerciseID uuid.UUID `json:"exercise_id"`
	SetIndex   int       `json:"set_index"`
	Reps       int       `json:"reps"`
	Weight     *float64  `json:"weight,omitempty"`
}

// flow returns the caller's workout flow, writing the error response itself
// when there is none.
func (s *Server) flow(w http.ResponseWriter, r *http.Request) (*workout.Flow, bool) {
	f, err := s.sessions.For(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return f, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) handleWorkoutProgress(w http.ResponseWriter, r *http.Request) {
	f, ok := s.flow(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f.Progress())
}

func (s *Server) handleStartWorkout(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PlanID == uuid.Nil || req.SessionID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "plan_id and session_id are required"})
		return
	}
	f, ok := s.flow(w, r)
	if !ok {
		return
	}
	plan, progress, err := f.Start(r.Context(), req.PlanID, req.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plan": plan, "progress": progress})
}

func (s *Server) handleLogSet(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decodeBody(w, r, &req) {
		return
	}
	f, ok := s.flow(w, r)
	if !ok {
		return
	}
	step, err := f.LogSet(r.Context(), req.ExerciseID, req.SetIndex,
		workout.SetInput{Reps: req.Reps, Weight: req.Weight})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) handleCompleteExercise(w http.ResponseWriter, r *http.Request) {
	exerciseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid exercise ID"})
		return
	}
	f, ok := s.flow(w, r)
	if !ok {
		return
	}
	step, err := f.CompleteExercise(r.Context(), exerciseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) handleSkipRest(w http.ResponseWriter, r *http.Request) {
	f, ok := s.flow(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f.SkipRest())
}

func (s *Server) handleCompleteWorkout(w http.ResponseWriter, r *http.Request) {
	f, ok := s.flow(w, r)
	if !ok {
		return
	}
	summary, err := f.Finish(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCancelWorkout(w http.ResponseWriter, r *http.Request) {
	f, ok := s.flow(w, r)
	if !ok {
		return
	}
	f.Cancel(r.Context())
	writeJSON(w, http.StatusOK, f.Progress())
}
