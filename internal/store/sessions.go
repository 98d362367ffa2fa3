package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetOrCreateActiveSession returns the owner's current active session,
// creating one when none exists yet.
func (s *Store) GetOrCreateActiveSession(ctx context.Context, ownerID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id
		FROM sessions
		WHERE owner_id = ? AND is_active = 1
		ORDER BY id DESC
		LIMIT 1`, ownerID).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		return s.CreateNewSession(ctx, ownerID)
	case err != nil:
		return 0, fmt.Errorf("query active session: %w", err)
	}
	return id, nil
}

// CreateNewSession deactivates the owner's current session and creates
// a fresh active one. Both steps run in a single transaction so the
// owner never observes zero or two active sessions. Deactivated
// sessions keep all their messages.
func (s *Store) CreateNewSession(ctx context.Context, ownerID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin session rollover: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET is_active = 0
		WHERE owner_id = ? AND is_active = 1`, ownerID); err != nil {
		return 0, fmt.Errorf("deactivate session: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (owner_id, created_at, is_active)
		VALUES (?, ?, 1)`, ownerID, utcNow())
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("session id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit session rollover: %w", err)
	}
	return id, nil
}

func utcNow() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
