// Package filestore resolves uploaded-file identifiers to filesystem paths.
package filestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store maps a file id to a local path. Implementations return ("", nil)
// when the id is unknown.
type Store interface {
	ResolveFilePath(ctx context.Context, fileID string) (string, error)
}

// DirStore resolves file ids against a flat upload directory, where each
// file is stored under its id.
type DirStore struct {
	Root string
}

// ResolveFilePath returns the path for fileID if it exists under Root.
func (s *DirStore) ResolveFilePath(_ context.Context, fileID string) (string, error) {
	if fileID == "" || s.Root == "" {
		return "", nil
	}
	matches, err := filepath.Glob(filepath.Join(s.Root, fileID+"*"))
	if err != nil || len(matches) == 0 {
		return "", nil
	}
	if _, err := os.Stat(matches[0]); err != nil {
		return "", nil
	}
	return matches[0], nil
}

// SQLStore resolves file ids from the uploads table of a sqlite database.
type SQLStore struct {
	db *sql.DB
}

// OpenSQL opens (and initializes if needed) the sqlite file store.
func OpenSQL(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file store: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize file store: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Add registers a file path under an id.
func (s *SQLStore) Add(ctx context.Context, fileID, path, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO files (id, path, name) VALUES (?, ?, ?)`,
		fileID, path, name)
	return err
}

// ResolveFilePath looks up the stored path for fileID.
func (s *SQLStore) ResolveFilePath(ctx context.Context, fileID string) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx,
		`SELECT path FROM files WHERE id = ?`, fileID).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return path, nil
}
