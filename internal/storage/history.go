// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists console input history and UI settings.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/promptcon/internal/config"
)

// Setting keys.
const (
	SettingTheme   = "theme"
	SettingBackend = "backend"
)

// DefaultHistoryLimit is the number of prompts kept when none is configured.
const DefaultHistoryLimit = 500

// Store is a SQLite-backed prompt history and settings store.
type Store struct {
	db    *sql.DB
	limit int
}

// DefaultPath returns ~/.promptcon/history.db.
func DefaultPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (creating if needed) the database at path. limit caps the
// number of stored prompts; zero means DefaultHistoryLimit.
func Open(path string, limit int) (*Store, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory:
	// databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", p, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.Exec(
		`INSERT INTO metadata(key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(SchemaVersion)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to record schema version: %w", err)
	}

	return &Store{db: db, limit: limit}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// PROMPT HISTORY
// =============================================================================

// Append records a submitted prompt and drops entries beyond the limit.
func (s *Store) Append(ctx context.Context, prompt, backendID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO prompt_history(prompt, backend_id, created_at) VALUES (?, ?, ?)`,
		prompt, backendID, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to insert prompt: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM prompt_history WHERE id NOT IN (
		     SELECT id FROM prompt_history ORDER BY id DESC LIMIT ?)`,
		s.limit); err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	return tx.Commit()
}

// Recent returns up to n prompts ordered oldest to newest. n <= 0 returns
// everything kept.
func (s *Store) Recent(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		n = s.limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT prompt FROM (
		     SELECT id, prompt FROM prompt_history ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var prompts []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// Count returns the number of stored prompts.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prompt_history`).Scan(&n)
	return n, err
}

// ClearHistory deletes all stored prompts.
func (s *Store) ClearHistory(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM prompt_history`)
	return err
}

// =============================================================================
// SETTINGS
// =============================================================================

// Setting returns a stored setting. ok is false when it was never set.
func (s *Store) Setting(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores a setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}
