package generator

import (
	"fmt"

	"github.com/haowjy/meridian-llm-go/providers/anthropic"
	"github.com/haowjy/meridian-llm-go/providers/lorem"

	"webforge/internal/config"
	"webforge/internal/domain/services"
)

// Default models per provider, used when GENERATOR_MODEL is empty
var defaultModels = map[string]string{
	"lorem":      "lorem-fast",
	"anthropic":  "claude-sonnet-4-5",
	"openai":     "gpt-4o-mini",
	"openrouter": "anthropic/claude-sonnet-4.5",
}

// New builds the generator selected by cfg.GeneratorProvider.
//
// Supported providers:
//   - "lorem" - mock provider, no API key required
//   - "anthropic" - Claude models via meridian-llm-go
//   - "openai" - OpenAI chat completions
//   - "openrouter" - OpenRouter through its OpenAI-compatible API
func New(cfg *config.Config) (services.Generator, error) {
	model := cfg.GeneratorModel
	if model == "" {
		model = defaultModels[cfg.GeneratorProvider]
	}

	switch cfg.GeneratorProvider {
	case "lorem":
		return NewLLMGenerator(lorem.NewProvider(), model)

	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
		provider, err := anthropic.NewProvider(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
		}
		return NewLLMGenerator(provider, model)

	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		return NewOpenAIGenerator("openai", cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, model), nil

	case "openrouter":
		if cfg.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY environment variable not set")
		}
		return NewOpenAIGenerator("openrouter", cfg.OpenRouterAPIKey, OpenRouterBaseURL, model), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.GeneratorProvider)
	}
}
