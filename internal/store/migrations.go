package store

import "fmt"

// migrations are applied in order; PRAGMA user_version tracks progress so
// reopening an existing database only runs the tail.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		metadata   TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_session
		ON messages(session_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS memories (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		content    TEXT NOT NULL,
		category   TEXT NOT NULL DEFAULT 'general',
		source     TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 1.0,
		embedding  BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_memories_category
		ON memories(category, created_at)`,

	`CREATE TABLE IF NOT EXISTS session_rules (
		session_id          TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
		history_limit       INTEGER NOT NULL,
		memory_limit        INTEGER NOT NULL,
		web_limit           INTEGER NOT NULL,
		file_limit          INTEGER NOT NULL,
		custom_instructions TEXT NOT NULL DEFAULT '',
		follow_up           INTEGER NOT NULL DEFAULT 1,
		updated_at          DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS attachments (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		filename     TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		text         TEXT NOT NULL,
		size_bytes   INTEGER NOT NULL DEFAULT 0,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
}

// migrate applies pending migrations, tracked via user_version.
func (s *SQLiteStore) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build supports (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("applying migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return fmt.Errorf("bumping schema version to %d: %w", i+1, err)
		}
	}
	return nil
}
