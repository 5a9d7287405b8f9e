// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jeranaias/campusgpt-tui/internal/model"
	"github.com/jeranaias/campusgpt-tui/internal/util"
)

// =============================================================================
// SQLITE CACHE
// =============================================================================

// Store is a SQLite-backed cache of the last history snapshot.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore opens or creates the cache at path. Use ":memory:" in tests.
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), util.PrivateDirPerm); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history_entries (
		position   INTEGER PRIMARY KEY,
		entry_id   TEXT NOT NULL,
		question   TEXT NOT NULL,
		answer     TEXT NOT NULL,
		sources    TEXT NOT NULL DEFAULT '[]',
		asked_at   TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS cache_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Replace swaps the cached snapshot for entries in one transaction.
func (s *Store) Replace(ctx context.Context, entries []model.HistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM history_entries`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO history_entries (position, entry_id, question, answer, sources, asked_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		sources, err := json.Marshal(e.Sources)
		if err != nil {
			return fmt.Errorf("failed to encode sources: %w", err)
		}
		var askedAt string
		if !e.Timestamp.IsZero() {
			askedAt = e.Timestamp.UTC().Format(time.RFC3339Nano)
		}
		if _, err := stmt.ExecContext(ctx, i, e.ID, e.Question, e.Answer, string(sources), askedAt); err != nil {
			return fmt.Errorf("failed to insert entry %q: %w", e.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_meta (key, value) VALUES ('refreshed_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to record refresh time: %w", err)
	}

	return tx.Commit()
}

// Load returns the cached snapshot in its original order and the time it
// was stored. Both are zero values for an empty cache.
func (s *Store) Load(ctx context.Context) ([]model.HistoryEntry, time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, question, answer, sources, asked_at
		FROM history_entries ORDER BY position`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query cache: %w", err)
	}
	defer rows.Close()

	entries := make([]model.HistoryEntry, 0)
	for rows.Next() {
		var (
			e       model.HistoryEntry
			sources string
			askedAt string
		)
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &sources, &askedAt); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to decode sources: %w", err)
		}
		e.Timestamp = model.ParseTimestamp(askedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}

	var refreshed string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM cache_meta WHERE key = 'refreshed_at'`).Scan(&refreshed)
	if err != nil && err != sql.ErrNoRows {
		return nil, time.Time{}, fmt.Errorf("failed to read refresh time: %w", err)
	}

	return entries, model.ParseTimestamp(refreshed), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
