// Command generate runs the configured site generator once, outside the
// server, and writes the resulting HTML to stdout or a file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"webforge/internal/config"
	"webforge/internal/domain/services"
	"webforge/internal/service/generator"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
)

func main() {
	prompt := flag.String("prompt", "", "Prompt to generate from (read from stdin when empty)")
	from := flag.String("from", "", "HTML file to revise instead of starting fresh")
	out := flag.String("out", "", "Write the result here instead of stdout")
	provider := flag.String("provider", "", "Override GENERATOR_PROVIDER")
	model := flag.String("model", "", "Override GENERATOR_MODEL")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()
	if *provider != "" {
		cfg.GeneratorProvider = *provider
	}
	if *model != "" {
		cfg.GeneratorModel = *model
	}
	if err := cfg.Validate(); err != nil {
		fail("invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	req, err := buildRequest(*prompt, *from, os.Stdin)
	if err != nil {
		fail("%v", err)
	}

	gen, err := generator.New(cfg)
	if err != nil {
		fail("create generator: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GenerationTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "%sGenerating with %s...%s\n", colorYellow, gen.Name(), colorReset)
	start := time.Now()
	result, err := gen.Generate(ctx, req)
	if err != nil {
		fail("generation failed: %v", err)
	}

	if err := writeResult(*out, result.Code); err != nil {
		fail("%v", err)
	}

	fmt.Fprintf(os.Stderr, "%s✓ %d bytes from %s in %s (tokens in=%d out=%d)%s\n",
		colorGreen, len(result.Code), result.Model, time.Since(start).Round(time.Millisecond),
		result.InputTokens, result.OutputTokens, colorReset)
}

// buildRequest assembles a generate request from flags, falling back to stdin
// for the prompt.
func buildRequest(prompt, fromPath string, stdin io.Reader) (*services.GenerateRequest, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		data, err := io.ReadAll(io.LimitReader(stdin, config.MaxPromptLength*4))
		if err != nil {
			return nil, fmt.Errorf("read prompt: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return nil, fmt.Errorf("a prompt is required (-prompt or stdin)")
	}
	if len([]rune(prompt)) > config.MaxPromptLength {
		return nil, fmt.Errorf("prompt exceeds %d characters", config.MaxPromptLength)
	}

	req := &services.GenerateRequest{Prompt: prompt}
	if fromPath != "" {
		data, err := os.ReadFile(fromPath)
		if err != nil {
			return nil, fmt.Errorf("read current code: %w", err)
		}
		code := string(data)
		req.CurrentCode = &code
	}
	return req, nil
}

func writeResult(path, code string) error {
	if path == "" {
		_, err := io.WriteString(os.Stdout, code)
		return err
	}
	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s✗ "+format+"%s\n", append([]any{colorRed}, append(args, colorReset)...)...)
	os.Exit(1)
}
