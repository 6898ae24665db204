package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetRules returns the stored rules for a session, or the defaults when
// none have been saved.
func (s *SQLiteStore) GetRules(ctx context.Context, sessionID string) (*Rules, error) {
	r := &Rules{}
	var followUp int
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, history_limit, memory_limit, web_limit, file_limit,
			custom_instructions, follow_up, updated_at
		 FROM session_rules WHERE session_id = ?`, sessionID,
	).Scan(&r.SessionID, &r.HistoryLimit, &r.MemoryLimit, &r.WebLimit, &r.FileLimit,
		&r.CustomInstructions, &followUp, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		defaults := DefaultRules(sessionID)
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting rules for %s: %w", sessionID, err)
	}
	r.FollowUp = followUp != 0
	return r, nil
}

// PutRules upserts the rules row for a session.
func (s *SQLiteStore) PutRules(ctx context.Context, r *Rules) error {
	if r.SessionID == "" {
		return fmt.Errorf("store: rules session id is required")
	}
	followUp := 0
	if r.FollowUp {
		followUp = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_rules
			(session_id, history_limit, memory_limit, web_limit, file_limit, custom_instructions, follow_up)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			history_limit = excluded.history_limit,
			memory_limit = excluded.memory_limit,
			web_limit = excluded.web_limit,
			file_limit = excluded.file_limit,
			custom_instructions = excluded.custom_instructions,
			follow_up = excluded.follow_up,
			updated_at = CURRENT_TIMESTAMP`,
		r.SessionID, r.HistoryLimit, r.MemoryLimit, r.WebLimit, r.FileLimit,
		r.CustomInstructions, followUp,
	)
	if err != nil {
		return fmt.Errorf("saving rules for %s: %w", r.SessionID, err)
	}
	return nil
}
