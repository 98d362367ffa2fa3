package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecentContext_FiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, err := s.GetOrCreateActiveSession(ctx, 1)
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	mustAppend(t, s, sid, RoleUser, "hello")
	mustAppend(t, s, sid, RoleAssistant, "hi there")
	mustAppend(t, s, sid, RoleSystem, "internal note")
	mustAppend(t, s, sid, RoleUser, "how are you")

	got, err := s.RecentContext(ctx, sid, 40)
	if err != nil {
		t.Fatalf("recent context: %v", err)
	}
	want := []ChatMessage{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi there"},
		{Role: RoleUser, Content: "how are you"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestRecentContext_LimitKeepsNewest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, _ := s.GetOrCreateActiveSession(ctx, 1)
	mustAppend(t, s, sid, RoleUser, "one")
	mustAppend(t, s, sid, RoleAssistant, "two")
	mustAppend(t, s, sid, RoleUser, "three")

	got, err := s.RecentContext(ctx, sid, 2)
	if err != nil {
		t.Fatalf("recent context: %v", err)
	}
	if len(got) != 2 || got[0].Content != "two" || got[1].Content != "three" {
		t.Fatalf("expected newest two in chronological order, got %+v", got)
	}
}

func TestMessageIDsStrictlyIncrease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, _ := s.GetOrCreateActiveSession(ctx, 1)
	var prev int64
	for i := 0; i < 5; i++ {
		id := mustAppend(t, s, sid, RoleUser, "msg")
		if id <= prev {
			t.Fatalf("ids not strictly increasing: %d after %d", id, prev)
		}
		prev = id
	}
}

func TestLastUserMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, _ := s.GetOrCreateActiveSession(ctx, 1)

	got, err := s.LastUserMessage(ctx, sid)
	if err != nil {
		t.Fatalf("last user message: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for empty session, got %+v", got)
	}

	mustAppend(t, s, sid, RoleUser, "first")
	mustAppend(t, s, sid, RoleAssistant, "reply")
	lastID := mustAppend(t, s, sid, RoleUser, "second")

	got, err = s.LastUserMessage(ctx, sid)
	if err != nil {
		t.Fatalf("last user message: %v", err)
	}
	if got == nil || got.ID != lastID || got.Content != "second" {
		t.Fatalf("unexpected last user message: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("timestamp not parsed")
	}
}

func TestHasProactiveAfter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, _ := s.GetOrCreateActiveSession(ctx, 1)
	userID := mustAppend(t, s, sid, RoleUser, "hello")

	has, err := s.HasProactiveAfter(ctx, sid, userID)
	if err != nil {
		t.Fatalf("has proactive after: %v", err)
	}
	if has {
		t.Fatalf("fresh user message should have no proactive successor")
	}

	// Plain assistant reply does not count.
	mustAppend(t, s, sid, RoleAssistant, "reply")
	has, _ = s.HasProactiveAfter(ctx, sid, userID)
	if has {
		t.Fatalf("non-proactive assistant message should not count")
	}

	if _, err := s.AppendMessage(ctx, sid, RoleAssistant, "ping", nil, true); err != nil {
		t.Fatalf("append proactive: %v", err)
	}
	has, _ = s.HasProactiveAfter(ctx, sid, userID)
	if !has {
		t.Fatalf("proactive message with greater id should count")
	}
}

func TestExportRecent_AllRolesChronological(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, _ := s.GetOrCreateActiveSession(ctx, 1)
	mustAppend(t, s, sid, RoleSystem, "sys")
	mustAppend(t, s, sid, RoleUser, "hello")
	mustAppend(t, s, sid, RoleAssistant, "hi")

	rows, err := s.ExportRecent(ctx, sid, 20)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Role != RoleSystem || rows[2].Role != RoleAssistant {
		t.Fatalf("rows not chronological: %+v", rows)
	}
	for _, r := range rows {
		if r.CreatedAt == "" {
			t.Fatalf("export row missing timestamp: %+v", r)
		}
	}
}

func TestCreateNewSession_SingleActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := int64(7)

	first, err := s.CreateNewSession(ctx, owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := s.CreateNewSession(ctx, owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct session ids, got %d twice", first)
	}

	if n := countActive(t, s.db, owner); n != 1 {
		t.Fatalf("expected exactly 1 active session, got %d", n)
	}

	active, err := s.GetOrCreateActiveSession(ctx, owner)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active != second {
		t.Fatalf("active session should be the newest: got %d want %d", active, second)
	}
}

func TestGetOrCreateActiveSession_CreatesOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.GetOrCreateActiveSession(ctx, 42)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	b, err := s.GetOrCreateActiveSession(ctx, 42)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if a != b {
		t.Fatalf("expected same session on repeated calls: %d vs %d", a, b)
	}
}

func TestAppendDuringRollover_KeepsIssuedSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := int64(1)

	old, _ := s.GetOrCreateActiveSession(ctx, owner)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := s.AppendMessage(ctx, old, RoleUser, "late message", nil, false); err != nil {
			t.Errorf("append: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := s.CreateNewSession(ctx, owner); err != nil {
			t.Errorf("rollover: %v", err)
		}
	}()
	wg.Wait()

	// The append must land in the session it was issued with.
	got, err := s.RecentContext(ctx, old, 10)
	if err != nil {
		t.Fatalf("recent context: %v", err)
	}
	if len(got) != 1 || got[0].Content != "late message" {
		t.Fatalf("message attached to wrong session: %+v", got)
	}
}

func TestHealthSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := int64(9)

	h, err := s.HealthSnapshot(ctx, owner)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if h.ActiveSessionID != nil || h.TotalMessages != 0 {
		t.Fatalf("unexpected empty-db snapshot: %+v", h)
	}

	sid, _ := s.GetOrCreateActiveSession(ctx, owner)
	mustAppend(t, s, sid, RoleUser, "hello")

	h, err = s.HealthSnapshot(ctx, owner)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if h.ActiveSessionID == nil || *h.ActiveSessionID != sid {
		t.Fatalf("active session missing from snapshot: %+v", h)
	}
	if h.ActiveSessionCreatedAt == nil || *h.ActiveSessionCreatedAt == "" {
		t.Fatalf("active session created_at missing: %+v", h)
	}
	if h.TotalMessages != 1 {
		t.Fatalf("expected 1 message, got %d", h.TotalMessages)
	}
}

func TestOpen_MigratesLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	// A database from before the is_proactive column existed.
	legacy, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	stmts := []string{
		`CREATE TABLE sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			meta_json TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		)`,
		`INSERT INTO sessions (owner_id, created_at, is_active) VALUES (1, '2024-01-01T00:00:00Z', 1)`,
		`INSERT INTO messages (session_id, role, content, created_at) VALUES (1, 'user', 'old message', '2024-01-01T00:00:01Z')`,
	}
	for _, stmt := range stmts {
		if _, err := legacy.Exec(stmt); err != nil {
			t.Fatalf("prepare legacy db: %v", err)
		}
	}
	if err := legacy.Close(); err != nil {
		t.Fatalf("close raw: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open migrated store: %v", err)
	}
	defer func() { _ = s.Close() }()

	ctx := context.Background()

	// Old rows survive with the default flag value.
	has, err := s.HasProactiveAfter(ctx, 1, 0)
	if err != nil {
		t.Fatalf("has proactive after: %v", err)
	}
	if has {
		t.Fatalf("legacy rows must default to non-proactive")
	}

	got, err := s.RecentContext(ctx, 1, 10)
	if err != nil {
		t.Fatalf("recent context: %v", err)
	}
	if len(got) != 1 || got[0].Content != "old message" {
		t.Fatalf("legacy rows lost in migration: %+v", got)
	}

	// New writes use the added column.
	if _, err := s.AppendMessage(ctx, 1, RoleAssistant, "ping", nil, true); err != nil {
		t.Fatalf("append after migration: %v", err)
	}
	has, _ = s.HasProactiveAfter(ctx, 1, 0)
	if !has {
		t.Fatalf("proactive flag not persisted after migration")
	}
}

func TestAppendMessage_MetaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, _ := s.GetOrCreateActiveSession(ctx, 1)
	meta := map[string]any{"model": "test-model", "latency_ms": 12}
	if _, err := s.AppendMessage(ctx, sid, RoleAssistant, "hi", meta, false); err != nil {
		t.Fatalf("append with meta: %v", err)
	}

	var metaJSON sql.NullString
	err := s.db.QueryRow(`SELECT meta_json FROM messages WHERE session_id = ?`, sid).Scan(&metaJSON)
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if !metaJSON.Valid || metaJSON.String == "" {
		t.Fatalf("meta not persisted")
	}

	// nil meta stays NULL
	if _, err := s.AppendMessage(ctx, sid, RoleUser, "plain", nil, false); err != nil {
		t.Fatalf("append without meta: %v", err)
	}
	err = s.db.QueryRow(`SELECT meta_json FROM messages WHERE session_id = ? AND role = 'user'`, sid).Scan(&metaJSON)
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if metaJSON.Valid {
		t.Fatalf("expected NULL meta, got %q", metaJSON.String)
	}
}

func mustAppend(t *testing.T, s *Store, sessionID int64, role, content string) int64 {
	t.Helper()
	id, err := s.AppendMessage(context.Background(), sessionID, role, content, nil, false)
	if err != nil {
		t.Fatalf("append %s message: %v", role, err)
	}
	return id
}

func countActive(t *testing.T, db *sql.DB, ownerID int64) int {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE owner_id = ? AND is_active = 1`, ownerID).Scan(&n)
	if err != nil {
		t.Fatalf("count active sessions: %v", err)
	}
	return n
}
