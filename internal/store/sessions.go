package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CreateSession inserts a new session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		return fmt.Errorf("store: session id is required")
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO sessions (id, title) VALUES (?, ?)
		 RETURNING created_at, updated_at`,
		sess.ID, sess.Title,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// GetSession fetches one session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	sess := &Session{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, created_at, updated_at FROM sessions WHERE id = ?", id,
	).Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns sessions, most recently updated first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, created_at, updated_at FROM sessions ORDER BY updated_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess := &Session{}
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// RenameSession updates the session title.
func (s *SQLiteStore) RenameSession(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", title, id,
	)
	if err != nil {
		return fmt.Errorf("renaming session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteSession removes a session; messages, rules and attachments cascade.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// AddMessage appends a message and touches the session timestamp.
func (s *SQLiteStore) AddMessage(ctx context.Context, m *Message) error {
	if m.ID == "" || m.SessionID == "" {
		return fmt.Errorf("store: message id and session id are required")
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, metadata)
		 VALUES (?, ?, ?, ?, ?) RETURNING created_at`,
		m.ID, m.SessionID, m.Role, m.Content, m.Metadata,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("adding message: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE sessions SET updated_at = CURRENT_TIMESTAMP WHERE id = ?", m.SessionID,
	)
	if err != nil {
		return fmt.Errorf("touching session %s: %w", m.SessionID, err)
	}
	return nil
}

// ListMessages returns the most recent messages for a session in
// chronological order.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, metadata, created_at
		 FROM (
			SELECT id, session_id, role, content, metadata, created_at, rowid
			FROM messages WHERE session_id = ?
			ORDER BY created_at DESC, rowid DESC LIMIT ?
		 ) ORDER BY created_at ASC, rowid ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
