package llm

import (
	"fmt"
	"time"

	"companion-bot/internal/config"
)

// NewFromConfig creates the LLM client selected by LLM_PROVIDER.
func NewFromConfig(cfg *config.Config) (Client, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		timeout := time.Duration(cfg.LLMTimeoutSeconds * float64(time.Second))
		return NewOpenAI(cfg.PolzaAPIKey, cfg.PolzaBaseURL, cfg.PolzaModel, timeout), nil
	case config.ProviderYandex:
		return NewYandex(cfg.YandexOAuthToken, cfg.YandexFolderID)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLMProvider)
	}
}
