package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type UnauthorizedMode string

const (
	UnauthorizedDeny   UnauthorizedMode = "deny"
	UnauthorizedIgnore UnauthorizedMode = "ignore"
)

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required"`
	OwnerTelegramID  int64  `env:"OWNER_TELEGRAM_ID,required"`

	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	PolzaAPIKey      string      `env:"POLZA_API_KEY"`
	PolzaBaseURL     string      `env:"POLZA_BASE_URL" envDefault:"https://api.polza.ai/api/v1"`
	PolzaModel       string      `env:"POLZA_MODEL"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// Prompts
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH" envDefault:"prompts/system_prompt.txt"`

	// Storage
	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite:///data.db"`

	// Conversation
	MaxContextMessages int     `env:"MAX_CONTEXT_MESSAGES" envDefault:"40"`
	LLMTimeoutSeconds  float64 `env:"LLM_TIMEOUT_SECONDS" envDefault:"60"`

	// Access policy for non-owner callers
	UnauthorizedMode    UnauthorizedMode `env:"UNAUTHORIZED_MODE" envDefault:"deny"`
	UnauthorizedMessage string           `env:"UNAUTHORIZED_MESSAGE" envDefault:"Access denied"`

	// Proactive messaging
	AutoMessageEnabled      bool    `env:"AUTO_MESSAGE_ENABLED" envDefault:"false"`
	AutoMessageIdleHoursMin float64 `env:"AUTO_MESSAGE_IDLE_HOURS_MIN" envDefault:"1"`
	AutoMessageIdleHoursMax float64 `env:"AUTO_MESSAGE_IDLE_HOURS_MAX" envDefault:"3"`
	AutoMessageCheckMinutes int     `env:"AUTO_MESSAGE_CHECK_MINUTES" envDefault:"10"`
}

const sqliteURLPrefix = "sqlite:///"

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.PolzaAPIKey == "" {
			return fmt.Errorf("POLZA_API_KEY is required for the openai provider")
		}
		if c.PolzaModel == "" {
			return fmt.Errorf("POLZA_MODEL is required for the openai provider")
		}
	case ProviderYandex:
		if c.YandexOAuthToken == "" || c.YandexFolderID == "" {
			return fmt.Errorf("YANDEX_OAUTH_TOKEN and YANDEX_FOLDER_ID are required for the yandex provider")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER: %s", c.LLMProvider)
	}

	if _, err := c.SQLitePath(); err != nil {
		return err
	}
	if c.MaxContextMessages < 1 {
		return fmt.Errorf("MAX_CONTEXT_MESSAGES must be >= 1")
	}
	if c.LLMTimeoutSeconds <= 0 {
		return fmt.Errorf("LLM_TIMEOUT_SECONDS must be > 0")
	}

	switch c.UnauthorizedMode {
	case UnauthorizedDeny, UnauthorizedIgnore:
	default:
		return fmt.Errorf("UNAUTHORIZED_MODE must be 'deny' or 'ignore'")
	}

	if c.AutoMessageIdleHoursMin <= 0 || c.AutoMessageIdleHoursMax <= 0 {
		return fmt.Errorf("AUTO_MESSAGE_IDLE_HOURS_MIN/MAX must be > 0")
	}
	if c.AutoMessageIdleHoursMin > c.AutoMessageIdleHoursMax {
		return fmt.Errorf("AUTO_MESSAGE_IDLE_HOURS_MIN cannot be greater than MAX")
	}
	if c.AutoMessageCheckMinutes < 1 {
		return fmt.Errorf("AUTO_MESSAGE_CHECK_MINUTES must be >= 1")
	}
	return nil
}

// SQLitePath extracts the file path from DATABASE_URL.
// Only the sqlite:/// scheme is supported.
func (c *Config) SQLitePath() (string, error) {
	if !strings.HasPrefix(c.DatabaseURL, sqliteURLPrefix) {
		return "", fmt.Errorf("only sqlite DATABASE_URL is supported, expected format: sqlite:///path/to/db.sqlite3")
	}
	path := strings.TrimPrefix(c.DatabaseURL, sqliteURLPrefix)
	if path == "" {
		return "", fmt.Errorf("DATABASE_URL sqlite path cannot be empty")
	}
	return path, nil
}
