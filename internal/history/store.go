// Package history keeps a SQLite record of completed recording sessions.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Record is one completed session.
type Record struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Entries    []string
	Text       string
}

// Store wraps the sessions database.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates parent dirs, opens the database, and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// A single connection serializes writers and keeps pragmas in effect.
	db.SetMaxOpenConns(1)

	if err := configure(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func configure(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Insert stores record, assigning an ID when it has none.
func (s *Store) Insert(ctx context.Context, record Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	entries := record.Entries
	if entries == nil {
		entries = []string{}
	}
	encoded, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, finished_at, entries, text) VALUES (?, ?, ?, ?, ?)`,
		record.ID,
		record.StartedAt.UnixMilli(),
		record.FinishedAt.UnixMilli(),
		string(encoded),
		record.Text,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", record.ID, err)
	}
	return nil
}

// Recent returns up to limit sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, entries, text FROM sessions ORDER BY finished_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			record         Record
			started, ended int64
			encodedEntries string
		)
		if err := rows.Scan(&record.ID, &started, &ended, &encodedEntries, &record.Text); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal([]byte(encodedEntries), &record.Entries); err != nil {
			return nil, fmt.Errorf("decode entries for %s: %w", record.ID, err)
		}
		record.StartedAt = time.UnixMilli(started)
		record.FinishedAt = time.UnixMilli(ended)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return records, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
