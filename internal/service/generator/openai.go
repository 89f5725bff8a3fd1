package generator

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"webforge/internal/domain/services"
)

// OpenRouterBaseURL is OpenRouter's OpenAI-compatible endpoint
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenAIGenerator calls an OpenAI-compatible chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	name   string
}

// NewOpenAIGenerator creates a generator. An empty baseURL uses api.openai.com.
func NewOpenAIGenerator(name, apiKey, baseURL, model string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		name:   name,
	}
}

// Name returns the provider name
func (g *OpenAIGenerator) Name() string {
	return g.name
}

// Generate sends the system and user prompt as one chat completion
func (g *OpenAIGenerator) Generate(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
	system, user := BuildMessages(req)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s chat completion: %w", g.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyOutput
	}

	code, err := ExtractCode(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &services.GenerateResult{
		Code:         code,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
