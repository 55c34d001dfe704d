package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/catalog"
	"github.com/claude/freecoach/internal/identity"
	"github.com/claude/freecoach/internal/storage"
	"github.com/claude/freecoach/internal/workout"
)

// maxPlanUpload caps the size of a trainer plan file.
const maxPlanUpload = 1 << 20

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := identity.UserInfo(r.Context())
	if !ok {
		u = DevUser
	}
	id, _ := identity.UserID(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      id,
		"login":        u.Login,
		"display_name": u.DisplayName,
	})
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	plans, err := s.store.ListPlans(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	planID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid plan ID"})
		return
	}
	plan, err := s.store.GetUserPlan(r.Context(), uid, planID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

type uploadedPlan struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	AssignedTo string    `json:"assigned_to"`
	UserID     int       `json:"user_id"`
}

// handleUploadPlans accepts a plan file (YAML or JSON, same keys) and
// upserts each plan for the student named in assigned_to.
func (s *Server) handleUploadPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := catalog.Parse(http.MaxBytesReader(w, r.Body, maxPlanUpload))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	for i, p := range plans {
		if p.AssignedTo == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("plan %d (%q): assigned_to is required", i+1, p.Name),
			})
			return
		}
	}

	result := make([]uploadedPlan, 0, len(plans))
	for _, p := range plans {
		uid, err := s.store.GetOrCreateUser(r.Context(), p.AssignedTo, "")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		p.UserID = uid
		if err := s.store.UpsertPlan(r.Context(), p); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.log.Info("plan uploaded", "plan_id", p.ID, "name", p.Name, "user_id", uid)
		result = append(result, uploadedPlan{ID: p.ID, Name: p.Name, AssignedTo: p.AssignedTo, UserID: uid})
	}
	writeJSON(w, http.StatusOK, map[string]any{"upserted": len(result), "plans": result})
}

func (s *Server) handleQueryLogs(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	logs, err := s.store.QueryWorkoutLogs(r.Context(), start, end, uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	p, err := s.store.GetProgress(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// mustUserID reads the user set by the identity middleware, answering 401
// when there is none.
func mustUserID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, ok := identity.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": workout.ErrUnauthenticated.Error()})
		return 0, false
	}
	return id, true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workout.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, workout.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workout.ErrNoActiveSession), errors.Is(err, workout.ErrIncompleteExercise),
		errors.Is(err, storage.ErrPlanConflict):
		return http.StatusConflict
	case errors.Is(err, workout.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, workout.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseTimeRange reads start/end query parameters (RFC 3339 or YYYY-MM-DD).
// Without start it covers the last 30 days; a date-only end includes that day.
func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse("2006-01-02", endStr)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
			}
			end = end.Add(24 * time.Hour)
		}
	}

	if startStr == "" {
		return end.AddDate(0, 0, -30), end, nil
	}
	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
		}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start must be before end")
	}
	return start, end, nil
}
