package generator

import (
	"context"
	"fmt"
	"strings"

	llmprovider "github.com/haowjy/meridian-llm-go"

	"webforge/internal/domain/services"
)

// LLMGenerator adapts a meridian-llm-go provider to services.Generator.
type LLMGenerator struct {
	provider llmprovider.Provider
	model    string
}

// NewLLMGenerator wraps provider, calling it with model
func NewLLMGenerator(provider llmprovider.Provider, model string) (*LLMGenerator, error) {
	if !provider.SupportsModel(model) {
		return nil, fmt.Errorf("model %s is not supported by %s", model, provider.Name().String())
	}
	return &LLMGenerator{provider: provider, model: model}, nil
}

// Name returns the provider name
func (g *LLMGenerator) Name() string {
	return g.provider.Name().String()
}

// Generate sends one user turn and extracts the document from the text blocks of the reply
func (g *LLMGenerator) Generate(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
	system, user := BuildMessages(req)
	text := system + "\n\n" + user

	libReq := &llmprovider.GenerateRequest{
		Messages: []llmprovider.Message{
			{
				Role: "user",
				Blocks: []*llmprovider.Block{
					{BlockType: "text", TextContent: &text},
				},
			},
		},
		Model: g.model,
	}

	resp, err := g.provider.GenerateResponse(ctx, libReq)
	if err != nil {
		return nil, fmt.Errorf("%s generate: %w", g.Name(), err)
	}

	var reply strings.Builder
	for _, block := range resp.Blocks {
		if block.BlockType == "text" && block.TextContent != nil {
			reply.WriteString(*block.TextContent)
		}
	}

	code, err := ExtractCode(reply.String())
	if err != nil {
		return nil, err
	}

	return &services.GenerateResult{
		Code:         code,
		Model:        resp.Model,
		InputTokens:  int(resp.InputTokens),
		OutputTokens: int(resp.OutputTokens),
	}, nil
}
