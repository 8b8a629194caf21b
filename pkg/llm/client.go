// Package llm wraps the OpenAI-compatible chat completion API with the
// pipeline's generation operations.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/scriptorium/scriptorium/pkg/config"
	"github.com/scriptorium/scriptorium/pkg/retry"
)

// Client issues completion requests against an OpenAI-compatible endpoint.
type Client struct {
	api          *openai.Client
	defaultModel string
	timeout      time.Duration
	policy       retry.Policy
}

// NewClient builds a client from configuration. Setting OPENAI_BASE_URL
// points it at any compatible endpoint.
func NewClient(cfg *config.LLMConfig) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:          openai.NewClientWithConfig(apiCfg),
		defaultModel: cfg.DefaultModel,
		timeout:      cfg.RequestTimeout,
		policy:       retry.Policy{Attempts: cfg.RetryAttempts, Wait: cfg.RetryWait},
	}
}

// complete sends one chat completion request, retrying transient failures,
// and returns the first choice's text.
func (c *Client) complete(ctx context.Context, model, system, user string, maxTokens int) (string, error) {
	if model == "" {
		model = c.defaultModel
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}

	var content string
	err := c.policy.Do(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.api.CreateChatCompletion(callCtx, req)
		if err != nil {
			return classifyError(err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("completion returned no choices")
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	if content == "" {
		return "", fmt.Errorf("completion returned empty content")
	}
	return content, nil
}

// classifyError marks rate limits, 5xx responses and network failures as
// transient so the retry policy re-attempts them.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return &retry.Transient{Err: err}
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &retry.Transient{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &retry.Transient{Err: err}
	}
	return err
}
