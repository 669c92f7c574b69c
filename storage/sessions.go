package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"seekchat/model"
)

const sessionColumns = `id, name, COALESCE(metadata, ''), createdAt, updatedAt`

func scanSession(row interface{ Scan(...any) error }) (model.Session, error) {
	var (
		sess             model.Session
		created, updated int64
	)
	if err := row.Scan(&sess.ID, &sess.Name, &sess.Metadata, &created, &updated); err != nil {
		return model.Session{}, err
	}
	sess.CreatedAt = fromMillis(created)
	sess.UpdatedAt = fromMillis(updated)
	return sess, nil
}

// CreateSession inserts a session with empty metadata.
func (s *Store) CreateSession(ctx context.Context, name string) (model.Session, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_session (name, metadata, createdAt, updatedAt) VALUES (?, '', ?, ?)`,
		name, millis(now), millis(now))
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{ID: id, Name: name, CreatedAt: fromMillis(millis(now)), UpdatedAt: fromMillis(millis(now))}, nil
}

// ListSessions returns every session, most recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_session ORDER BY updatedAt DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// GetSession loads one session.
func (s *Store) GetSession(ctx context.Context, id int64) (model.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_session WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	return sess, err
}

// UpdateSessionMetadata replaces the session's metadata JSON.
func (s *Store) UpdateSessionMetadata(ctx context.Context, id int64, metadata string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_session SET metadata = ?, updatedAt = ? WHERE id = ?`,
		metadata, millis(s.now()), id)
	if err != nil {
		return fmt.Errorf("failed to update session metadata: %w", err)
	}
	return checkAffected(res, "session", id)
}

// RenameSession changes the session name.
func (s *Store) RenameSession(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_session SET name = ?, updatedAt = ? WHERE id = ?`,
		name, millis(s.now()), id)
	if err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	return checkAffected(res, "session", id)
}

// DeleteSession removes the session and, through the foreign key, its
// messages.
func (s *Store) DeleteSession(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_session WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return checkAffected(res, "session", id)
}
