package llm

import (
	"context"
	"fmt"

	"github.com/emrgen/impact/internal/config"
	"github.com/sirupsen/logrus"
)

const (
	temperature = 0.7
	maxTokens   = 2000
)

// Client sends one system and user prompt pair to a language model and
// returns the raw text of the reply.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// NewClient builds the client for cfg.Provider. With no provider configured
// the deterministic mock is used.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case "anthropic":
		return NewAnthropic(cfg.APIKey, cfg.Model)
	case "gemini":
		return NewGemini(ctx, cfg.APIKey, cfg.Model)
	case "ollama":
		return NewOllama(cfg.BaseURL, cfg.Model)
	case "mock", "":
		logrus.Warn("no llm provider configured, using mock responses")
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
