package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Message roles. Every persisted message carries exactly one of these.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Store owns the durable conversation state: sessions and their
// append-only message log. It is the only component that touches the
// database; everything else goes through it.
// Safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the conversation database and brings the
// schema up to date. Schema changes are additive only: a database
// created by an older build is upgraded in place without touching
// existing rows.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to ensure db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_owner_active ON sessions(owner_id, is_active);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL,
		meta_json TEXT,
		is_proactive INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	// is_proactive arrived after the first release; older databases
	// need the column added with its default.
	return s.ensureMessageColumn("is_proactive", "INTEGER NOT NULL DEFAULT 0")
}

func (s *Store) ensureMessageColumn(name, ddl string) error {
	rows, err := s.db.Query(`PRAGMA table_info(messages)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	exists := false
	for rows.Next() {
		var (
			cid        int
			colName    string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultVal, &pk); err != nil {
			return err
		}
		if colName == name {
			exists = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = s.db.Exec(fmt.Sprintf("ALTER TABLE messages ADD COLUMN %s %s", name, ddl))
	return err
}

// Health is a read-only snapshot used by the /health command.
type Health struct {
	ActiveSessionID        *int64  `json:"active_session_id"`
	ActiveSessionCreatedAt *string `json:"active_session_created_at"`
	TotalMessages          int64   `json:"total_messages"`
}

// HealthSnapshot reports the owner's active session and the overall
// message count.
func (s *Store) HealthSnapshot(ctx context.Context, ownerID int64) (Health, error) {
	var h Health

	var (
		id        int64
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at
		FROM sessions
		WHERE owner_id = ? AND is_active = 1
		ORDER BY id DESC
		LIMIT 1`, ownerID).Scan(&id, &createdAt)
	switch {
	case err == sql.ErrNoRows:
		// no active session yet
	case err != nil:
		return Health{}, fmt.Errorf("health: query active session: %w", err)
	default:
		h.ActiveSessionID = &id
		h.ActiveSessionCreatedAt = &createdAt
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&h.TotalMessages); err != nil {
		return Health{}, fmt.Errorf("health: count messages: %w", err)
	}
	return h, nil
}
