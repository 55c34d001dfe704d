// Package checkpoint keeps in-progress workouts in a local SQLite file so a
// restarted server can pick them up again.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/claude/freecoach/internal/workout"
)

// Store is a workout.Checkpointer backed by SQLite at dir/checkpoints.db.
type Store struct {
	db *sql.DB
}

var _ workout.Checkpointer = (*Store)(nil)

// Open opens (or creates) the checkpoint database in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "checkpoints.db"))
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint db: %w", err)
	}
	// The sqlite driver serialises writers anyway; one connection avoids
	// SQLITE_BUSY between concurrent users.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS active_sessions (
		user_id    INTEGER PRIMARY KEY,
		log_id     TEXT NOT NULL,
		payload    BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating checkpoint table: %w", err)
	}
	return &Store{db: db}, nil
}

// Save replaces the checkpoint of s.UserID.
func (s *Store) Save(ctx context.Context, a *workout.ActiveSession) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO active_sessions (user_id, log_id, payload, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		a.UserID, a.LogID.String(), payload)
	if err != nil {
		return fmt.Errorf("saving checkpoint of user %d: %w", a.UserID, err)
	}
	return nil
}

// Load returns the checkpoint of userID, or nil when there is none.
func (s *Store) Load(ctx context.Context, userID int) (*workout.ActiveSession, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM active_sessions WHERE user_id = ?`, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint of user %d: %w", userID, err)
	}

	var a workout.ActiveSession
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("decoding checkpoint of user %d: %w", userID, err)
	}
	if a.UserID != userID {
		return nil, fmt.Errorf("checkpoint of user %d belongs to user %d", userID, a.UserID)
	}
	return &a, nil
}

// Delete removes the checkpoint of userID. Deleting a missing one is not an error.
func (s *Store) Delete(ctx context.Context, userID int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM active_sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("deleting checkpoint of user %d: %w", userID, err)
	}
	return nil
}

// Close closes the checkpoint database.
func (s *Store) Close() error {
	return s.db.Close()
}
