package upload

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// StateDB remembers which plan files were accepted by the server so
// unchanged files are not re-sent.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS uploaded_plan_files (
		path        TEXT NOT NULL,
		server      TEXT NOT NULL,
		hash        TEXT NOT NULL,
		plans       INTEGER NOT NULL,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (path, server)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// IsUploaded reports whether the file was already sent to server with the same content.
func (s *StateDB) IsUploaded(relPath, server, hash string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM uploaded_plan_files WHERE path = ? AND server = ? AND hash = ?`,
		relPath, server, hash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking upload state of %s: %w", relPath, err)
	}
	return count > 0, nil
}

// MarkUploaded records that a file was accepted by server.
func (s *StateDB) MarkUploaded(relPath, server, hash string, plans int) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO uploaded_plan_files (path, server, hash, plans, uploaded_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		relPath, server, hash, plans,
	)
	if err != nil {
		return fmt.Errorf("recording upload of %s: %w", relPath, err)
	}
	return nil
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// hashBytes returns the hex SHA-256 of data.
func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
