// Package store database for exported collages and booth settings
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("export not found")

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{db: db}

	// Create table if it doesn't exist
	if err := database.createTable(); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return database, nil
}

func (d *Database) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS exports (
		name       TEXT NOT NULL,
		session_id TEXT NOT NULL,
		layout_id  TEXT NOT NULL,
		frame_id   TEXT NOT NULL,
		framed     INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (name)
	);
	CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at);
	CREATE TABLE IF NOT EXISTS booth_settings (
		singleton INTEGER NOT NULL DEFAULT 1 CHECK (singleton = 1),
		countdown_seconds INTEGER NOT NULL,
		default_layout    TEXT NOT NULL,
		default_frame     TEXT NOT NULL,
		PRIMARY KEY (singleton)
	);
	`
	_, err := d.db.Exec(query)
	return err
}

func (d *Database) InsertExport(e *Export) error {
	query := `
		INSERT INTO exports (name, session_id, layout_id, frame_id, framed, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := d.db.Exec(
		query,
		e.Name,
		e.SessionID,
		e.LayoutID,
		e.FrameID,
		boolToInt(e.Framed),
		e.SizeBytes,
		e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert export: %w", err)
	}
	return nil
}

func scanExports(rows *sql.Rows) ([]Export, error) {
	var exports []Export
	for rows.Next() {
		var e Export
		var framed int
		var createdAt int64
		if err := rows.Scan(&e.Name, &e.SessionID, &e.LayoutID, &e.FrameID, &framed, &e.SizeBytes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		e.Framed = framed != 0
		e.CreatedAt = time.UnixMilli(createdAt)
		exports = append(exports, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return exports, nil
}

// GetExports returns a page of exports, newest first.
func (d *Database) GetExports(limit int, offset int) ([]Export, error) {
	query := `
		SELECT name, session_id, layout_id, frame_id, framed, size_bytes, created_at
		FROM exports
		ORDER BY created_at DESC, name DESC
		LIMIT ? OFFSET ?
	`
	rows, err := d.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query exports: %w", err)
	}
	defer rows.Close()

	return scanExports(rows)
}

func (d *Database) GetExport(name string) (*Export, error) {
	query := `
		SELECT name, session_id, layout_id, frame_id, framed, size_bytes, created_at
		FROM exports
		WHERE name = ?
	`
	rows, err := d.db.Query(query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query export: %w", err)
	}
	defer rows.Close()

	exports, err := scanExports(rows)
	if err != nil {
		return nil, err
	}
	if len(exports) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &exports[0], nil
}

func (d *Database) GetAllExportNames() ([]string, error) {
	rows, err := d.db.Query(`SELECT name FROM exports`)
	if err != nil {
		return nil, fmt.Errorf("failed to query export names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan export name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return names, nil
}

func (d *Database) GetExportCount() (int, error) {
	query := `SELECT COUNT(*) FROM exports`
	var count int
	err := d.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get export count: %w", err)
	}
	return count, nil
}

func (d *Database) ExportExists(name string) (bool, error) {
	query := `SELECT COUNT(*) FROM exports WHERE name = ?`
	var count int
	err := d.db.QueryRow(query, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check export existence: %w", err)
	}
	return count > 0, nil
}

func (d *Database) DeleteExport(name string) error {
	query := `DELETE FROM exports WHERE name = ?`
	result, err := d.db.Exec(query, name)
	if err != nil {
		return fmt.Errorf("failed to delete export: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return nil
}

func (d *Database) GetBoothSettings() (*BoothSettings, error) {
	const query = `
		SELECT countdown_seconds,
		       default_layout,
		       default_frame
		FROM booth_settings
		WHERE singleton = 1
	`

	var s BoothSettings
	err := d.db.QueryRow(query).Scan(&s.CountdownSeconds, &s.DefaultLayout, &s.DefaultFrame)
	if err == sql.ErrNoRows {
		// Bootstrap defaults if no settings row exists yet
		defaults := DefaultBoothSettings()
		if err := d.UpsertBoothSettings(defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get booth settings: %w", err)
	}
	return &s, nil
}

func (d *Database) UpsertBoothSettings(s *BoothSettings) error {
	const stmt = `
		INSERT INTO booth_settings (
			singleton,
			countdown_seconds,
			default_layout,
			default_frame
		) VALUES (1, ?, ?, ?)
		ON CONFLICT(singleton) DO UPDATE SET
			countdown_seconds = excluded.countdown_seconds,
			default_layout    = excluded.default_layout,
			default_frame     = excluded.default_frame
	`

	_, err := d.db.Exec(
		stmt,
		s.CountdownSeconds,
		s.DefaultLayout,
		s.DefaultFrame,
	)
	if err != nil {
		return fmt.Errorf("upsert booth settings: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (d *Database) Close() error {
	return d.db.Close()
}
