// Package storage persists chat sessions and their messages in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultSessionName is given to the session created for an empty store.
const DefaultSessionName = "New Chat"

// ErrNotFound is returned when a session or message does not exist.
var ErrNotFound = errors.New("not found")

// Store is the session and message store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) chat.db inside dataDir.
func Open(dataDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return OpenPath(filepath.Join(dataDir, "chat.db"), logger)
}

// OpenPath opens the database file at path.
func OpenPath(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps the pragmas and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, logger: logger.With("component", "storage"), now: time.Now}
	if err := s.initialize(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_session (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		metadata TEXT DEFAULT '',
		updatedAt INTEGER DEFAULT 0,
		createdAt INTEGER DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS chat_message (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sessionId INTEGER NOT NULL,
		role TEXT NOT NULL,
		providerId TEXT NOT NULL DEFAULT '',
		modelId TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		status TEXT DEFAULT '',
		updatedAt INTEGER DEFAULT 0,
		createdAt INTEGER DEFAULT 0,
		FOREIGN KEY (sessionId) REFERENCES chat_session(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chat_message_session ON chat_message(sessionId, createdAt);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	if err := s.migrateSchema(ctx); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_session`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		s.logger.Info("creating default session")
		if _, err := s.CreateSession(ctx, DefaultSessionName); err != nil {
			return err
		}
	}
	return nil
}

// migrateSchema adds the metadata column to databases created before
// session settings existed.
func (s *Store) migrateSchema(ctx context.Context) error {
	hasMetadata, err := s.columnExists(ctx, "chat_session", "metadata")
	if err != nil {
		return fmt.Errorf("failed to check for metadata column: %w", err)
	}
	if !hasMetadata {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE chat_session ADD COLUMN metadata TEXT DEFAULT ''`); err != nil {
			return fmt.Errorf("failed to add metadata column: %w", err)
		}
	}
	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info
func (s *Store) columnExists(ctx context.Context, tableName, columnName string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid          int
			name         string
			dataType     string
			notNull      int
			defaultValue any
			pk           int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}
		if name == columnName {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// checkAffected maps an update that touched no rows to ErrNotFound.
func checkAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
