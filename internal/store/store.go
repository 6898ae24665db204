// Package store provides the SQLite storage layer for Veritas.
//
// All assistant state lives in a single SQLite database file:
// - Chat sessions and their messages, with validation metadata per message
// - Long-term memories with optional embedding vectors
// - Per-session context rules
// - Uploaded file attachments (extracted text)
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Session is one chat conversation.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one turn in a session. Metadata holds the serialized
// confidence record for assistant messages, empty otherwise.
type Message struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	Metadata  string
	CreatedAt time.Time
}

// Memory is one long-term memory entry. Embedding is empty when no
// embedder was available at write time.
type Memory struct {
	ID         int64
	Content    string
	Category   string
	Source     string
	Confidence float64
	Embedding  []float32
	CreatedAt  time.Time
}

// Rules are the per-session context limits and options.
type Rules struct {
	SessionID          string
	HistoryLimit       int
	MemoryLimit        int
	WebLimit           int
	FileLimit          int
	CustomInstructions string
	FollowUp           bool
	UpdatedAt          time.Time
}

// DefaultRules returns the limits used when a session has no stored rules.
func DefaultRules(sessionID string) Rules {
	return Rules{
		SessionID:    sessionID,
		HistoryLimit: 10,
		MemoryLimit:  5,
		WebLimit:     3,
		FileLimit:    3,
		FollowUp:     true,
	}
}

// Attachment is an uploaded file reduced to its extracted text.
type Attachment struct {
	ID          int64
	SessionID   string
	Filename    string
	ContentType string
	Text        string
	SizeBytes   int64
	CreatedAt   time.Time
}

// Stats holds row counts for observability.
type Stats struct {
	SessionCount    int64
	MessageCount    int64
	MemoryCount     int64
	AttachmentCount int64
}

// Store defines the persistence interface.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]*Session, error)
	RenameSession(ctx context.Context, id, title string) error
	DeleteSession(ctx context.Context, id string) error

	// Messages
	AddMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error)

	// Memories
	AddMemory(ctx context.Context, m *Memory) (int64, error)
	ListMemories(ctx context.Context, category string, limit int) ([]*Memory, error)
	DeleteMemory(ctx context.Context, id int64) error

	// Rules
	GetRules(ctx context.Context, sessionID string) (*Rules, error)
	PutRules(ctx context.Context, r *Rules) error

	// Attachments
	AddAttachment(ctx context.Context, a *Attachment) (int64, error)
	ListAttachments(ctx context.Context, sessionID string) ([]*Attachment, error)
	DeleteAttachment(ctx context.Context, id int64) error

	// Observability
	Stats(ctx context.Context) (*Stats, error)

	Close() error
}

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (or creates) the database and runs migrations.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(dbPath string) (Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("store: db path is required")
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stats returns row counts across the main tables.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	out := &Stats{}
	counts := []struct {
		query string
		dst   *int64
	}{
		{"SELECT COUNT(*) FROM sessions", &out.SessionCount},
		{"SELECT COUNT(*) FROM messages", &out.MessageCount},
		{"SELECT COUNT(*) FROM memories", &out.MemoryCount},
		{"SELECT COUNT(*) FROM attachments", &out.AttachmentCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting rows: %w", err)
		}
	}
	return out, nil
}
