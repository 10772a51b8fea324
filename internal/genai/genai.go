// Package genai provides the generative-model capability used for objective
// evaluation and prompt text generation, backed by the OpenAI API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// ClientInterface is the capability contract the rest of the system depends
// on. Callers must treat every call as best-effort and fallible.
type ClientInterface interface {
	// GenerateStructured generates a JSON response conforming to the given
	// schema. The returned string is the raw JSON document.
	GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schemaName string, schema map[string]interface{}) (string, error)
}

// Opts holds configurable options for the client.
type Opts struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Option configures the client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Opts) { o.Timeout = timeout }
}

// Default client configuration.
const (
	DefaultModel   = openai.ChatModelGPT4oMini
	DefaultTimeout = 30 * time.Second
	maxAttempts    = 3
)

// Client implements ClientInterface over the OpenAI chat completions API.
type Client struct {
	api   openai.Client
	model openai.ChatModel
}

// NewClient creates a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not set via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		slog.Error("genai.NewClient: API key not set")
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	api := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	)
	slog.Debug("genai.NewClient: client created", "model", cfg.Model, "timeout", cfg.Timeout)
	return &Client{api: api, model: openai.ChatModel(cfg.Model)}, nil
}

// GenerateStructured generates a schema-constrained JSON response.
func (c *Client) GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schemaName string, schema map[string]interface{}) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Schema: schema,
					Strict: openai.Bool(true),
				},
			},
		},
	}
	return c.complete(ctx, params)
}

// complete runs the chat completion with bounded retries on transient API
// failures. Rate-limit and server errors are retried with a short backoff;
// everything else fails immediately.
func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	backoff := []time.Duration{time.Second, 3 * time.Second}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("no choices returned")
			}
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == maxAttempts-1 {
			slog.Error("genai.complete: chat completion failed", "error", err, "attempt", attempt+1)
			return "", err
		}
		slog.Warn("genai.complete: transient API error, retrying", "error", err, "attempt", attempt+1)
		select {
		case <-time.After(backoff[attempt]):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("chat completion failed after %d attempts: %w", maxAttempts, lastErr)
}

// isRetryable reports whether the error looks like a rate limit or server
// fault worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "server_error") ||
		strings.Contains(msg, "internal server error")
}
