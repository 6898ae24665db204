package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// AddMemory inserts a memory, encoding the embedding as a little-endian
// float32 blob when present.
func (s *SQLiteStore) AddMemory(ctx context.Context, m *Memory) (int64, error) {
	if m.Content == "" {
		return 0, fmt.Errorf("store: memory content is required")
	}
	category := m.Category
	if category == "" {
		category = "general"
	}
	var blob []byte
	if len(m.Embedding) > 0 {
		blob = float32ToBytes(m.Embedding)
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO memories (content, category, source, confidence, embedding)
		 VALUES (?, ?, ?, ?, ?) RETURNING id, created_at`,
		m.Content, category, m.Source, m.Confidence, blob,
	).Scan(&id, &m.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("adding memory: %w", err)
	}
	m.ID = id
	m.Category = category
	return id, nil
}

// ListMemories returns memories, newest first, optionally filtered by
// category.
func (s *SQLiteStore) ListMemories(ctx context.Context, category string, limit int) ([]*Memory, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, content, category, source, confidence, embedding, created_at
		FROM memories`
	args := []any{}
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer rows.Close()

	var out []*Memory
	for rows.Next() {
		m := &Memory{}
		var blob []byte
		if err := rows.Scan(&m.ID, &m.Content, &m.Category, &m.Source, &m.Confidence, &blob, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning memory row: %w", err)
		}
		if len(blob) > 0 {
			m.Embedding = bytesToFloat32(blob)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMemory removes one memory by ID.
func (s *SQLiteStore) DeleteMemory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting memory %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("memory %d: %w", id, ErrNotFound)
	}
	return nil
}

// float32ToBytes converts a float32 slice to a byte slice (little-endian).
func float32ToBytes(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// bytesToFloat32 converts a byte slice back to float32 slice (little-endian).
func bytesToFloat32(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
