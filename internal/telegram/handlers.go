package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"companion-bot/internal/report"
	"companion-bot/internal/store"
)

const typingInterval = 4 * time.Second

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if !b.ensureOwner(msg) {
		return
	}

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "help":
		b.handleHelp(msg)
	case "reset":
		b.handleReset(ctx, msg)
	case "export":
		b.handleExport(ctx, msg)
	case "health":
		b.handleHealth(ctx, msg)
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	if _, err := b.sessions.GetOrCreateActive(ctx); err != nil {
		log.Printf("❌ Failed to ensure active session: %v", err)
		return
	}
	b.sendMessage(msg.Chat.ID,
		"Привет. Это приватный companion-бот.\n"+
			"Команды: /help, /reset, /export [N], /health")
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) {
	b.sendMessage(msg.Chat.ID,
		"Доступные команды:\n"+
			"/start - приветствие\n"+
			"/help - справка\n"+
			"/reset - новая сессия, контекст обнуляется\n"+
			"/export [N] - выгрузка последних N сообщений (по умолчанию 20)\n"+
			"/health - статус БД и активной сессии")
}

func (b *Bot) handleReset(ctx context.Context, msg *tgbotapi.Message) {
	sessionID, err := b.sessions.StartNew(ctx)
	if err != nil {
		log.Printf("❌ Failed to start new session: %v", err)
		return
	}
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("Контекст сброшен. Создана новая сессия: %d.", sessionID))
}

func (b *Bot) handleExport(ctx context.Context, msg *tgbotapi.Message) {
	requested := report.DefaultExportLimit
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		n, err := strconv.Atoi(strings.Fields(args)[0])
		if err != nil {
			b.sendMessage(msg.Chat.ID, "N должно быть целым числом")
			return
		}
		requested = n
	}
	limit := report.ClampLimit(requested)

	sessionID, err := b.sessions.GetOrCreateActive(ctx)
	if err != nil {
		log.Printf("❌ Failed to resolve session for export: %v", err)
		return
	}
	rows, err := b.store.ExportRecent(ctx, sessionID, limit)
	if err != nil {
		log.Printf("❌ Failed to export history: %v", err)
		return
	}
	if len(rows) == 0 {
		b.sendMessage(msg.Chat.ID, "История пустая")
		return
	}
	b.sendMessage(msg.Chat.ID, report.FormatExport(rows))
}

func (b *Bot) handleHealth(ctx context.Context, msg *tgbotapi.Message) {
	h, err := b.store.HealthSnapshot(ctx, b.cfg.OwnerTelegramID)
	if err != nil {
		log.Printf("❌ Failed to collect health snapshot: %v", err)
		return
	}
	b.sendMessage(msg.Chat.ID, report.FormatHealth(h))
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	if !b.ensureOwner(msg) {
		return
	}

	userText := strings.TrimSpace(msg.Text)
	if userText == "" {
		return
	}

	sessionID, err := b.sessions.GetOrCreateActive(ctx)
	if err != nil {
		log.Printf("❌ Failed to resolve active session: %v", err)
		return
	}
	if _, err := b.store.AppendMessage(ctx, sessionID, store.RoleUser, userText, nil, false); err != nil {
		log.Printf("❌ Failed to persist user message: %v", err)
		return
	}

	msgs, err := b.sessions.ContextWindow(ctx, sessionID)
	if err != nil {
		log.Printf("❌ Failed to build context window: %v", err)
		return
	}

	// Generation is the only long call; keep the typing indicator
	// alive beside it and join the loop before going on.
	typingCtx, cancelTyping := context.WithCancel(ctx)
	typingDone := b.startTypingLoop(typingCtx, msg.Chat.ID)

	resp, genErr := b.llmClient.Generate(ctx, msgs)

	cancelTyping()
	<-typingDone

	if genErr != nil {
		log.Printf("❌ Failed to generate reply: %v", genErr)
		b.sendMessage(msg.Chat.ID, "Сервис временно недоступен, попробуй ещё раз.")
		return
	}

	log.Printf("🤖 LLM response [model=%s, latency=%dms, tokens: prompt=%d, completion=%d, total=%d]",
		resp.Model, resp.LatencyMS, resp.PromptTokens, resp.CompletionTokens, resp.TotalTokens)

	if _, err := b.store.AppendMessage(ctx, sessionID, store.RoleAssistant, resp.Content, resp.Meta(), false); err != nil {
		log.Printf("❌ Failed to persist assistant message: %v", err)
		return
	}
	b.sendMessage(msg.Chat.ID, resp.Content)
}

// startTypingLoop keeps the "typing..." indicator visible while a
// reply is generated. The returned channel closes once the loop has
// fully stopped; callers must wait on it after cancelling.
func (b *Bot) startTypingLoop(ctx context.Context, chatID int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()

		b.sendTyping(chatID)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.sendTyping(chatID)
			}
		}
	}()
	return done
}

func (b *Bot) sendTyping(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.r.Request(action); err != nil {
		log.Printf("⚠️ Unable to send typing action: %v", err)
	}
}
