// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists literature-review results in SQLite so repeated
// runs on the same research goal skip the expensive review pipeline.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// Store manages the review-result cache database.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens or creates the cache database at path, creating parent
// directories and the schema as needed.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS review_results (
		goal TEXT PRIMARY KEY,
		result TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}
	return nil
}

// Get returns the cached review result for a research goal. The second
// return value reports whether a usable entry was found; a corrupt entry
// counts as a miss.
func (s *Store) Get(ctx context.Context, goal string) (*types.ReviewResult, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM review_results WHERE goal = ?`, goal,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying cache: %w", err)
	}

	var result types.ReviewResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		s.log.Warn("discarding corrupt cache entry", zap.String("goal", goal), zap.Error(err))
		return nil, false, nil
	}
	return &result, true, nil
}

// Put stores the review result for a research goal, replacing any
// previous entry.
func (s *Store) Put(ctx context.Context, goal string, result types.ReviewResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling review result: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO review_results (goal, result, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(goal) DO UPDATE SET result=excluded.result, created_at=excluded.created_at`,
		goal, string(raw), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing review result: %w", err)
	}
	return nil
}

// Entry summarizes one cached review for listings.
type Entry struct {
	Goal      string
	Articles  int
	CreatedAt time.Time
}

// List returns cache entries, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT goal, result, created_at FROM review_results ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var goal, raw, createdAt string
		if err := rows.Scan(&goal, &raw, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning cache row: %w", err)
		}

		entry := Entry{Goal: goal}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			entry.CreatedAt = t
		}
		var result types.ReviewResult
		if err := json.Unmarshal([]byte(raw), &result); err == nil {
			entry.Articles = len(result.Articles)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Delete removes the entry for a goal, reporting whether one existed.
func (s *Store) Delete(ctx context.Context, goal string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM review_results WHERE goal = ?`, goal)
	if err != nil {
		return false, fmt.Errorf("deleting cache entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear removes all entries and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM review_results`)
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	return res.RowsAffected()
}
