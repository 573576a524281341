package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"routekit/internal/config"
)

const systemPrompt = "You are a helpful assistant that generates realistic request payloads for REST API tests. Always respond with a single JSON object and nothing else."

// OpenAIClient implements Completer using OpenAI's chat API
type OpenAIClient struct {
	cfg    config.LLMConfig
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client. A non-empty BaseURL points it
// at any OpenAI-compatible server.
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// Complete implements the actual LLM API call for OpenAI
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       c.cfg.Model,
			Temperature: float32(c.cfg.Temperature),
			MaxTokens:   c.cfg.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}
