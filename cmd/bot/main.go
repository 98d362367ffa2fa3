package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"companion-bot/internal/config"
	"companion-bot/internal/llm"
	"companion-bot/internal/proactive"
	"companion-bot/internal/scheduler"
	"companion-bot/internal/session"
	"companion-bot/internal/store"
	"companion-bot/internal/telegram"
)

const defaultSystemPrompt = "Ты — личный companion-бот. Отвечай тепло, кратко и по делу."

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	dbPath, err := cfg.SQLitePath()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open conversation store: %v", err)
	}
	defer func() { _ = st.Close() }()

	llmClient, err := llm.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}

	systemPrompt := readSystemPrompt(cfg.SystemPromptPath)
	sessions := session.NewManager(st, cfg.OwnerTelegramID, systemPrompt, cfg.MaxContextMessages)

	bot, err := telegram.New(cfg, st, sessions, llmClient)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.AutoMessageEnabled {
		engine := proactive.NewEngine(st, sessions, llmClient, bot, cfg.AutoMessageIdleHoursMin, cfg.AutoMessageIdleHoursMax)
		sched := scheduler.New(time.Duration(cfg.AutoMessageCheckMinutes) * time.Minute)
		sched.SetTickFunction(engine.Tick)
		if err := sched.Start(); err != nil {
			log.Fatalf("failed to start scheduler: %v", err)
		}
		defer sched.Stop()
		log.Printf("💬 Auto message enabled: idle %.2f-%.2f h, check each %d min",
			cfg.AutoMessageIdleHoursMin, cfg.AutoMessageIdleHoursMax, cfg.AutoMessageCheckMinutes)
	}

	log.Println("🤖 Bot started with long polling")
	bot.Start(ctx)
}

func readSystemPrompt(path string) string {
	if path == "" {
		return defaultSystemPrompt
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("system prompt file not found or unreadable at %s: %v", path, err)
		return defaultSystemPrompt
	}
	return string(data)
}
