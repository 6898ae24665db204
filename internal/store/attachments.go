package store

import (
	"context"
	"fmt"
)

// AddAttachment stores an uploaded file's extracted text.
func (s *SQLiteStore) AddAttachment(ctx context.Context, a *Attachment) (int64, error) {
	if a.SessionID == "" || a.Filename == "" {
		return 0, fmt.Errorf("store: attachment session id and filename are required")
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO attachments (session_id, filename, content_type, text, size_bytes)
		 VALUES (?, ?, ?, ?, ?) RETURNING id, created_at`,
		a.SessionID, a.Filename, a.ContentType, a.Text, a.SizeBytes,
	).Scan(&id, &a.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("adding attachment: %w", err)
	}
	a.ID = id
	return id, nil
}

// ListAttachments returns a session's attachments, oldest first.
func (s *SQLiteStore) ListAttachments(ctx context.Context, sessionID string) ([]*Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, filename, content_type, text, size_bytes, created_at
		 FROM attachments WHERE session_id = ? ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing attachments for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []*Attachment
	for rows.Next() {
		a := &Attachment{}
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Filename, &a.ContentType, &a.Text, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning attachment row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAttachment removes one attachment by ID.
func (s *SQLiteStore) DeleteAttachment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM attachments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting attachment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("attachment %d: %w", id, ErrNotFound)
	}
	return nil
}
