package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ChatMessage is a single turn as supplied to the generation contract.
type ChatMessage struct {
	Role    string
	Content string
}

// LastUserMessage identifies the newest user turn in a session; the
// proactive engine keys its idle clock and threshold off it.
type LastUserMessage struct {
	ID        int64
	Content   string
	CreatedAt time.Time
}

// ExportedMessage is a history row for the /export command, all roles
// included.
type ExportedMessage struct {
	Role      string
	Content   string
	CreatedAt string
}

// AppendMessage durably records one turn and returns its id. Ids
// strictly increase in append order; rows are never updated or
// deleted. meta may be nil.
func (s *Store) AppendMessage(ctx context.Context, sessionID int64, role, content string, meta map[string]any, proactive bool) (int64, error) {
	var metaJSON sql.NullString
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return 0, fmt.Errorf("marshal message meta: %w", err)
		}
		metaJSON = sql.NullString{String: string(b), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, created_at, meta_json, is_proactive)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, role, content, utcNow(), metaJSON, boolToInt(proactive))
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("message id: %w", err)
	}
	return id, nil
}

// RecentContext returns up to limit most recent user/assistant turns
// in chronological order. The query walks newest-first, so the result
// is reversed before returning.
func (s *Store) RecentContext(ctx context.Context, sessionID int64, limit int) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content
		FROM messages
		WHERE session_id = ? AND role IN (?, ?)
		ORDER BY id DESC
		LIMIT ?`, sessionID, RoleUser, RoleAssistant, limit)
	if err != nil {
		return nil, fmt.Errorf("query context: %w", err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("scan context row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("context rows: %w", err)
	}
	reverse(out)
	return out, nil
}

// LastUserMessage returns the highest-id user message of the session,
// or nil when the session has no user turn yet.
func (s *Store) LastUserMessage(ctx context.Context, sessionID int64) (*LastUserMessage, error) {
	var (
		m         LastUserMessage
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, content, created_at
		FROM messages
		WHERE session_id = ? AND role = ?
		ORDER BY id DESC
		LIMIT 1`, sessionID, RoleUser).Scan(&m.ID, &m.Content, &createdAt)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("query last user message: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse message timestamp %q: %w", createdAt, err)
	}
	m.CreatedAt = ts
	return &m, nil
}

// HasProactiveAfter reports whether a proactive assistant message with
// an id greater than messageID exists in the session.
func (s *Store) HasProactiveAfter(ctx context.Context, sessionID, messageID int64) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id
		FROM messages
		WHERE session_id = ? AND role = ? AND is_proactive = 1 AND id > ?
		ORDER BY id DESC
		LIMIT 1`, sessionID, RoleAssistant, messageID).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query proactive after: %w", err)
	}
	return true, nil
}

// ExportRecent returns up to limit most recent messages of any role
// with timestamps, in chronological order.
func (s *Store) ExportRecent(ctx context.Context, sessionID int64, limit int) ([]ExportedMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query export: %w", err)
	}
	defer rows.Close()

	var out []ExportedMessage
	for rows.Next() {
		var m ExportedMessage
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("export rows: %w", err)
	}
	reverse(out)
	return out, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
