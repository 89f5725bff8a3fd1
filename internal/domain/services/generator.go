package services

import "context"

// GenerateRequest is one call to the code generator.
// CurrentCode is set when revising an existing site.
type GenerateRequest struct {
	Prompt      string
	CurrentCode *string
}

// GenerateResult is the generator's output
type GenerateResult struct {
	Code         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Generator turns a prompt (and optionally prior code) into a site bundle.
type Generator interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)

	// Name identifies the backing provider ("lorem", "anthropic", ...)
	Name() string
}
