// Package llm provides text-completion clients for answer synthesis and
// intent refinement. Two backends are supported: a local Ollama server and
// the Gemini generateContent API.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Completer sends prompts to a text-completion backend.
type Completer interface {
	// Complete sends a prompt and returns the completion.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithSystem sends a prompt with a system message.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Name returns the client name for diagnostics.
	Name() string
}

// Config holds completion client configuration.
type Config struct {
	Provider string // "ollama" or "gemini"
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration

	Temperature float64
	MaxTokens   int
}

// NewCompleter creates a completion client based on configuration.
func NewCompleter(cfg Config) (Completer, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaClient(cfg), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini API key is required")
		}
		return NewGeminiClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s (use 'ollama' or 'gemini')", cfg.Provider)
	}
}
