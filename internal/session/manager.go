package session

import (
	"context"

	"companion-bot/internal/llm"
	"companion-bot/internal/store"
)

// Manager resolves which session the owner's conversation lives in and
// assembles the context window for generation. All durable truth stays
// in the store; the manager holds only configuration.
type Manager struct {
	store        *store.Store
	ownerID      int64
	systemPrompt string
	contextLimit int
}

func NewManager(s *store.Store, ownerID int64, systemPrompt string, contextLimit int) *Manager {
	return &Manager{
		store:        s,
		ownerID:      ownerID,
		systemPrompt: systemPrompt,
		contextLimit: contextLimit,
	}
}

// GetOrCreateActive returns the owner's active session id.
func (m *Manager) GetOrCreateActive(ctx context.Context) (int64, error) {
	return m.store.GetOrCreateActiveSession(ctx, m.ownerID)
}

// StartNew rolls the owner over to a fresh session. Nothing is
// deleted; future messages simply attach to the new session, so its
// context window starts empty.
func (m *Manager) StartNew(ctx context.Context) (int64, error) {
	return m.store.CreateNewSession(ctx, m.ownerID)
}

// ContextWindow builds the prompt prefix for generation: the system
// prompt followed by the session's recent user/assistant turns in
// chronological order.
func (m *Manager) ContextWindow(ctx context.Context, sessionID int64) ([]llm.Message, error) {
	history, err := m.store.RecentContext(ctx, sessionID, m.contextLimit)
	if err != nil {
		return nil, err
	}

	var out []llm.Message
	if m.systemPrompt != "" {
		out = append(out, llm.Message{Role: store.RoleSystem, Content: m.systemPrompt})
	}
	for _, h := range history {
		out = append(out, llm.Message{Role: h.Role, Content: h.Content})
	}
	return out, nil
}
