package proactive

import (
	"context"
	"fmt"
	"log"
	"time"

	"companion-bot/internal/llm"
	"companion-bot/internal/session"
	"companion-bot/internal/store"
)

// openerPrompt is the synthetic instruction appended after the context
// window when a proactive message is generated.
const openerPrompt = "Был длительный перерыв в переписке. " +
	"Напиши короткое тёплое сообщение первой (1-2 предложения, без навязчивости), " +
	"чтобы мягко начать диалог снова."

// Deliverer sends the generated proactive message to the owner.
// Best-effort: failures are logged, never propagated, because the
// message is already durable by the time delivery is attempted.
type Deliverer interface {
	SendToOwner(text string) error
}

// Engine decides on each scheduler tick whether the assistant should
// speak first. It keeps no state of its own; every decision is
// recomputed from the store.
type Engine struct {
	store     *store.Store
	sessions  *session.Manager
	llmClient llm.Client
	deliverer Deliverer

	minIdleHours float64
	maxIdleHours float64

	now func() time.Time
}

func NewEngine(s *store.Store, sessions *session.Manager, llmClient llm.Client, deliverer Deliverer, minIdleHours, maxIdleHours float64) *Engine {
	return &Engine{
		store:        s,
		sessions:     sessions,
		llmClient:    llmClient,
		deliverer:    deliverer,
		minIdleHours: minIdleHours,
		maxIdleHours: maxIdleHours,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Tick evaluates the proactive rule once. Generation failures are
// logged and swallowed (the next tick re-evaluates from scratch);
// storage failures propagate.
func (e *Engine) Tick(ctx context.Context) error {
	sessionID, err := e.sessions.GetOrCreateActive(ctx)
	if err != nil {
		return fmt.Errorf("resolve active session: %w", err)
	}

	last, err := e.store.LastUserMessage(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("last user message: %w", err)
	}
	if last == nil {
		// The owner has not spoken yet; nothing to follow up on.
		return nil
	}

	fired, err := e.store.HasProactiveAfter(ctx, sessionID, last.ID)
	if err != nil {
		return fmt.Errorf("check proactive marker: %w", err)
	}
	if fired {
		// At most one proactive message per idle period.
		return nil
	}

	idle := e.now().Sub(last.CreatedAt)
	required := RequiredIdle(last.ID, e.minIdleHours, e.maxIdleHours)
	if idle < required {
		return nil
	}

	log.Printf("💤 Session %d idle for %s (threshold %s), generating proactive message", sessionID, idle.Round(time.Second), required.Round(time.Second))

	msgs, err := e.sessions.ContextWindow(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("build context window: %w", err)
	}
	msgs = append(msgs, llm.Message{Role: store.RoleUser, Content: openerPrompt})

	resp, err := e.llmClient.Generate(ctx, msgs)
	if err != nil {
		log.Printf("❌ Failed to generate proactive message: %v", err)
		return nil
	}

	meta := resp.Meta()
	meta["proactive"] = true
	meta["trigger"] = "inactivity"
	meta["idle_seconds"] = int64(idle.Seconds())
	meta["required_idle_seconds"] = int64(required.Seconds())

	if _, err := e.store.AppendMessage(ctx, sessionID, store.RoleAssistant, resp.Content, meta, true); err != nil {
		return fmt.Errorf("persist proactive message: %w", err)
	}

	if err := e.deliverer.SendToOwner(resp.Content); err != nil {
		log.Printf("⚠️ Unable to deliver proactive message to owner: %v", err)
	}
	return nil
}
