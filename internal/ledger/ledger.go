// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records conversion runs and caches formula recognitions
// in a SQLite database.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/texmark/pkg/types"
)

const defaultRunsLimit = 20

// timeLayout is fixed-width UTC so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store manages the ledger database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at path, creating its directory and
// schema if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source_path TEXT NOT NULL,
			source_sha256 TEXT,
			output_path TEXT,
			status TEXT NOT NULL,
			images INTEGER NOT NULL DEFAULT 0,
			formulas INTEGER NOT NULL DEFAULT 0,
			failures INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS formulas (
			digest TEXT PRIMARY KEY,
			latex TEXT NOT NULL,
			recognized_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun inserts rec, assigning a new ID when rec.ID is empty, and
// returns the stored ID.
func (s *Store) RecordRun(ctx context.Context, rec types.RunRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source_path, source_sha256, output_path, status, images, formulas, failures, started_at, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SourcePath, rec.SourceSHA256, rec.OutputPath, string(rec.Status),
		rec.Images, rec.Formulas, rec.Failures,
		rec.StartedAt.UTC().Format(timeLayout), rec.Duration.Milliseconds(), rec.Error,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run %s: %w", rec.ID, err)
	}
	return rec.ID, nil
}

// Runs returns up to limit runs, most recent first. A limit of zero or
// less returns the default of 20.
func (s *Store) Runs(ctx context.Context, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = defaultRunsLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_path, source_sha256, output_path, status, images, formulas, failures, started_at, duration_ms, error
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []types.RunRecord
	for rows.Next() {
		var (
			rec                  types.RunRecord
			sha, outPath, errMsg sql.NullString
			status, startedAt    string
			durationMS           int64
		)
		if err := rows.Scan(&rec.ID, &rec.SourcePath, &sha, &outPath, &status,
			&rec.Images, &rec.Formulas, &rec.Failures, &startedAt, &durationMS, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		rec.SourceSHA256 = sha.String
		rec.OutputPath = outPath.String
		rec.Error = errMsg.String
		rec.Status = types.RunStatus(status)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at of run %s: %w", rec.ID, err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// LookupFormula returns the cached LaTeX for an image digest.
func (s *Store) LookupFormula(ctx context.Context, digest string) (string, bool, error) {
	var latex string
	err := s.db.QueryRowContext(ctx, `SELECT latex FROM formulas WHERE digest = ?`, digest).Scan(&latex)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up formula %s: %w", digest, err)
	}
	return latex, true, nil
}

// StoreFormula caches latex for an image digest, replacing any earlier
// entry.
func (s *Store) StoreFormula(ctx context.Context, digest, latex string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO formulas (digest, latex, recognized_at) VALUES (?, ?, ?)
		 ON CONFLICT(digest) DO UPDATE SET latex=excluded.latex, recognized_at=excluded.recognized_at`,
		digest, latex, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("storing formula %s: %w", digest, err)
	}
	return nil
}
