// Package llm provides the model backend clients used by the inference
// stage. The pipeline only sees the Client interface; a failing or slow
// backend surfaces as a per-item error, never as a pipeline crash.
package llm

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/longeval/longeval/internal/config"
)

// Client is the interface for completing a single prompt against a model
// backend.
type Client interface {
	// Complete sends one prompt and returns the model's text response.
	// args carries per-record sampling parameters (temperature, max_tokens).
	Complete(ctx context.Context, prompt string, args map[string]any) (string, error)
}

// NewClient creates a client for the configured backend.
func NewClient(cfg config.ModelConfig) (Client, error) {
	switch cfg.Backend {
	case "mock":
		return NewMockClient(nil), nil
	case "openai", "":
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("%q is not a valid model backend", cfg.Backend)
	}
}

// OpenAIClient talks to an OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client for the configured model. The API key is
// read from the environment variable named by api_key_env (default
// OPENAI_API_KEY); base_url points local backends at their own endpoint.
func NewOpenAIClient(cfg config.ModelConfig) (*OpenAIClient, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("environment variable %s is not set", keyEnv)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Complete sends one chat completion request and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, args map[string]any) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if v, ok := floatArg(args, "temperature"); ok {
		req.Temperature = float32(v)
	}
	if v, ok := floatArg(args, "max_tokens"); ok {
		req.MaxTokens = int(v)
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// floatArg reads a numeric argument that YAML or JSON may have decoded as
// either an int or a float.
func floatArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
