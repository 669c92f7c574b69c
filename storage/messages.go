package storage

import (
	"context"
	"fmt"

	"seekchat/model"
)

// GetMessages returns a session's messages oldest first.
func (s *Store) GetMessages(ctx context.Context, sessionID int64) ([]model.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, sessionId, role, providerId, modelId, content, COALESCE(status, ''), createdAt, updatedAt
	FROM chat_message
	WHERE sessionId = ?
	ORDER BY createdAt ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []model.StoredMessage
	for rows.Next() {
		var (
			m                model.StoredMessage
			status           string
			created, updated int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.ProviderID, &m.ModelID, &m.Content, &status, &created, &updated); err != nil {
			return nil, err
		}
		m.Status = model.Status(status)
		m.CreatedAt = fromMillis(created)
		m.UpdatedAt = fromMillis(updated)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AddMessage inserts msg and touches its session. The stored message with
// its assigned id and timestamps is returned.
func (s *Store) AddMessage(ctx context.Context, msg model.StoredMessage) (model.StoredMessage, error) {
	now := fromMillis(millis(s.now()))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.StoredMessage{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO chat_message (sessionId, role, providerId, modelId, content, status, createdAt, updatedAt)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.SessionID, msg.Role, msg.ProviderID, msg.ModelID, msg.Content, string(msg.Status), millis(now), millis(now))
	if err != nil {
		return model.StoredMessage{}, fmt.Errorf("failed to add message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.StoredMessage{}, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE chat_session SET updatedAt = ? WHERE id = ?`, millis(now), msg.SessionID); err != nil {
		return model.StoredMessage{}, fmt.Errorf("failed to touch session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.StoredMessage{}, err
	}

	msg.ID = id
	msg.CreatedAt = now
	msg.UpdatedAt = now
	return msg, nil
}

// UpdateMessageStatus sets the message status.
func (s *Store) UpdateMessageStatus(ctx context.Context, id int64, status model.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_message SET status = ?, updatedAt = ? WHERE id = ?`,
		string(status), millis(s.now()), id)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	return checkAffected(res, "message", id)
}

// UpdateMessageContent replaces the message's encoded content blocks.
func (s *Store) UpdateMessageContent(ctx context.Context, id int64, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_message SET content = ?, updatedAt = ? WHERE id = ?`,
		content, millis(s.now()), id)
	if err != nil {
		return fmt.Errorf("failed to update message content: %w", err)
	}
	return checkAffected(res, "message", id)
}

// DeleteMessage removes one message.
func (s *Store) DeleteMessage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_message WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return checkAffected(res, "message", id)
}

// DeleteSessionMessages clears a session and reports how many messages
// were removed.
func (s *Store) DeleteSessionMessages(ctx context.Context, sessionID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_message WHERE sessionId = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete session messages: %w", err)
	}
	return res.RowsAffected()
}
