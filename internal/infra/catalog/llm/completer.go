// Package llm guesses a track's genre with a language model. It is the
// last resort of the genre waterfall, so its confidence is capped below
// what the catalogs report.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"

	"track-enricher/internal/config"
	"track-enricher/internal/domain/entity"
	"track-enricher/internal/resilience/retry"
)

// Completer answers a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewCompleter builds the completer selected by cfg.
func NewCompleter(cfg *config.LLMConfig) (Completer, error) {
	switch cfg.Backend {
	case "anthropic":
		return NewAnthropic(cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.Timeout), nil
	case "openai":
		return NewOpenAI(openai.DefaultConfig(cfg.APIKey), cfg.Model, cfg.MaxTokens, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM backend %q", cfg.Backend)
	}
}

type backendError string

func (e backendError) Error() string { return string(e) }

func (backendError) ErrorClass() entity.ErrorClass { return entity.ClassFatalUnretryable }

// ErrNoBackend is returned by Unconfigured.
const ErrNoBackend = backendError("no LLM backend configured")

// Unconfigured stands in when LLM_BACKEND is empty so the llm provider stays
// registered. Every call fails unretryably.
type Unconfigured struct{}

// Complete implements Completer.
func (Unconfigured) Complete(context.Context, string) (string, error) {
	return "", ErrNoBackend
}

// Anthropic completes prompts with the Claude Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewAnthropic creates a Claude completer. SDK retries are disabled; the
// provider adapter retries.
func NewAnthropic(apiKey, model string, maxTokens int, timeout time.Duration, opts ...option.RequestOption) *Anthropic {
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}
}

// Complete implements Completer.
func (a *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", statusError(apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("%w: claude api returned empty response", retry.ErrMalformedResponse)
	}
	block, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("%w: claude api returned unexpected response type", retry.ErrMalformedResponse)
	}
	return block.Text, nil
}

// OpenAI completes prompts with the Chat Completions API.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewOpenAI creates a GPT completer from cfg.
func NewOpenAI(cfg openai.ClientConfig, model string, maxTokens int, timeout time.Duration) *OpenAI {
	return &OpenAI{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}
}

// Complete implements Completer.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", statusError(apiErr.HTTPStatusCode, err)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", statusError(reqErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai api returned empty response", retry.ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// statusError maps an SDK error with an HTTP status onto retry.HTTPError.
func statusError(status int, err error) error {
	if status == 0 {
		return fmt.Errorf("llm api error: %w", err)
	}
	return &retry.HTTPError{StatusCode: status, Message: err.Error()}
}

