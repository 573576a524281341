package llm

import (
	"fmt"

	"routekit/internal/config"
)

// NewClient creates a new LLM client based on the provider
func NewClient(cfg config.LLMConfig) (Completer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
