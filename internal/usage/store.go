// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

const defaultRecentLimit = 50

// Store provides SQLite persistence for the request log.
type Store struct {
	db *sql.DB
}

// NewStore initializes the SQLite store and runs migrations.
// busy_timeout avoids "database locked" errors under concurrent writes.
func NewStore(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable. Used by readiness.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS inference_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TEXT NOT NULL,
		repo_id TEXT NOT NULL,
		task TEXT NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('ok', 'error', 'loading', 'denied')),
		duration_ms INTEGER NOT NULL DEFAULT 0,
		cold_start INTEGER NOT NULL DEFAULT 0,
		client_ip TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_inference_requests_ts ON inference_requests(ts);
	CREATE INDEX IF NOT EXISTS idx_inference_requests_repo ON inference_requests(repo_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Insert appends one request to the log. A zero TS is stamped now.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	if e.RepoID == "" {
		return fmt.Errorf("usage: entry requires a repo id")
	}
	ts := e.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	query := `
	INSERT INTO inference_requests (ts, repo_id, task, status, duration_ms, cold_start, client_ip)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		ts.UTC().Format(time.RFC3339Nano),
		e.RepoID,
		string(e.Task),
		e.Status.String(),
		e.DurationMS,
		e.ColdStart,
		e.ClientIP,
	)
	return err
}

// Recent returns the newest entries, newest first. A non-positive limit
// falls back to a small default.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	query := `
	SELECT id, ts, repo_id, task, status, duration_ms, cold_start, client_ip
	FROM inference_requests
	ORDER BY id DESC
	LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var tsStr string

		if err := rows.Scan(&e.ID, &tsStr, &e.RepoID, &e.Task, &e.Status, &e.DurationMS, &e.ColdStart, &e.ClientIP); err != nil {
			return nil, err
		}

		e.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// CountByModel aggregates logged requests per repository, busiest first.
func (s *Store) CountByModel(ctx context.Context) ([]ModelCount, error) {
	query := `
	SELECT repo_id, COUNT(*) AS n
	FROM inference_requests
	GROUP BY repo_id
	ORDER BY n DESC, repo_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var counts []ModelCount
	for rows.Next() {
		var c ModelCount
		if err := rows.Scan(&c.RepoID, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}
