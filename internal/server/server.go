package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/storage"
	"github.com/claude/freecoach/internal/workout"
)

// Store is the persistence the HTTP API reads and writes directly.
// *storage.DB satisfies it.
type Store interface {
	UserStore
	ListPlans(ctx context.Context, userID int) ([]models.TrainingPlan, error)
	GetUserPlan(ctx context.Context, userID int, planID uuid.UUID) (*models.TrainingPlan, error)
	UpsertPlan(ctx context.Context, plan models.TrainingPlan) error
	QueryWorkoutLogs(ctx context.Context, start, end time.Time, userID int) ([]models.WorkoutLogRow, error)
	GetProgress(ctx context.Context, userID int) (*storage.ProgressSummary, error)
}

// UserStore maps tailnet logins to user IDs.
type UserStore interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
}

var _ Store = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    Store
	sessions *workout.Sessions
	log      *slog.Logger
	apiKey   string
	router   chi.Router

	mu        sync.RWMutex
	whois     WhoIser
	devUserID int
	mcp       http.Handler
}

// New creates a new Server with all routes configured. Until SetTailscale is
// called every request acts as the dev user.
func New(store Store, sessions *workout.Sessions, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:     store,
		sessions:  sessions,
		log:       log,
		apiKey:    apiKey,
		router:    chi.NewRouter(),
		devUserID: 1,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale switches identity resolution to tailnet WhoIs lookups.
func (s *Server) SetTailscale(whois WhoIser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whois = whois
}

// SetDevUser sets the user every request acts as without Tailscale.
func (s *Server) SetDevUser(userID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devUserID = userID
}

// SetMCP mounts an MCP transport at /mcp.
func (s *Server) SetMCP(h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mcp = h
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Trainer uploads (API key required)
		r.With(APIKeyAuth(s.apiKey)).Post("/plans", s.handleUploadPlans)

		// Student endpoints (identity from tsnet, or the dev user)
		r.Group(func(r chi.Router) {
			r.Use(s.identify)
			r.Get("/me", s.handleMe)
			r.Get("/plans", s.handleListPlans)
			r.Get("/plans/{id}", s.handleGetPlan)
			r.Get("/logs", s.handleQueryLogs)
			r.Get("/progress", s.handleProgress)

			r.Route("/workout", func(r chi.Router) {
				r.Get("/", s.handleWorkoutProgress)
				r.Post("/start", s.handleStartWorkout)
				r.Post("/sets", s.handleLogSet)
				r.Post("/exercises/{id}/complete", s.handleCompleteExercise)
				r.Post("/rest/skip", s.handleSkipRest)
				r.Post("/complete", s.handleCompleteWorkout)
				r.Post("/cancel", s.handleCancelWorkout)
			})
		})
	})

	s.router.With(s.identify).Handle("/mcp", http.HandlerFunc(s.handleMCP))
}

// identify picks the identity middleware at request time so SetTailscale
// may be called after the routes are built.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		whois, devUser := s.whois, s.devUserID
		s.mu.RUnlock()

		if whois != nil {
			TailscaleIdentity(whois, s.store, s.log)(next).ServeHTTP(w, r)
			return
		}
		DevIdentity(devUser)(next).ServeHTTP(w, r)
	})
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	h := s.mcp
	s.mu.RUnlock()
	if h == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "mcp is not enabled"})
		return
	}
	h.ServeHTTP(w, r)
}
