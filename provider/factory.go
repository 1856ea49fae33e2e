package provider

import (
	"fmt"

	"ollmui/chat"
)

// ProviderType selects a backend implementation.
type ProviderType string

const (
	ProviderTypeOllama    ProviderType = "ollama"
	ProviderTypeOpenAI    ProviderType = "openai"
	ProviderTypeAnthropic ProviderType = "anthropic"
)

// Config is everything a backend needs to connect.
type Config struct {
	Type    ProviderType
	BaseURL string
	APIKey  string
}

// NewProvider builds the configured backend.
func NewProvider(cfg Config) (chat.Provider, error) {
	switch cfg.Type {
	case ProviderTypeOllama:
		return NewOllamaProvider(cfg.BaseURL)
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey)
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(cfg.BaseURL, cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
