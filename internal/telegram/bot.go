package telegram

import (
	"context"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"companion-bot/internal/config"
	"companion-bot/internal/llm"
	"companion-bot/internal/session"
	"companion-bot/internal/store"
)

type Bot struct {
	api       *tgbotapi.BotAPI
	s         sender
	r         requester
	cfg       *config.Config
	store     *store.Store
	sessions  *session.Manager
	llmClient llm.Client
}

func New(cfg *config.Config, st *store.Store, sessions *session.Manager, llmClient llm.Client) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:       api,
		s:         botAPISender{api: api},
		r:         botAPIRequester{api: api},
		cfg:       cfg,
		store:     st,
		sessions:  sessions,
		llmClient: llmClient,
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			if update.Message.IsCommand() {
				b.handleCommand(ctx, update.Message)
			} else {
				b.handleText(ctx, update.Message)
			}
		}
	}
}

// SendToOwner delivers an out-of-band message (proactive path).
func (b *Bot) SendToOwner(text string) error {
	msg := tgbotapi.NewMessage(b.cfg.OwnerTelegramID, text)
	_, err := b.s.Send(msg)
	return err
}

// ensureOwner enforces the single-owner policy. Non-owner callers are
// either answered with the configured denial message or dropped
// silently, depending on UNAUTHORIZED_MODE.
func (b *Bot) ensureOwner(msg *tgbotapi.Message) bool {
	if msg.From == nil {
		return false
	}
	if msg.From.ID == b.cfg.OwnerTelegramID {
		return true
	}

	log.Printf("⚠️ Unauthorized access attempt by user ID: %d, username: @%s", msg.From.ID, msg.From.UserName)
	if b.cfg.UnauthorizedMode == config.UnauthorizedDeny {
		b.sendMessage(msg.Chat.ID, b.cfg.UnauthorizedMessage)
	}
	return false
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("❌ Failed to send message: %v", err)
	}
}
