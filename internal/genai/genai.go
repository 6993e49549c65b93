// Package genai wraps the OpenAI-compatible chat completion API used for plan
// decomposition and flow-editing conversations.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/Kelp/internal/config"
	"github.com/BTreeMap/Kelp/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultModel       = string(openai.ChatModelGPT4oMini)
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
	DefaultTimeout     = 20 * time.Second
)

var (
	ErrRateLimited       = errors.New("completion provider rate limit exceeded")
	ErrQuotaExhausted    = errors.New("completion provider credits exhausted")
	ErrNoChoicesReturned = errors.New("no choices returned")
)

// StatusError is a non-2xx answer from the completion provider.
type StatusError struct {
	StatusCode int
	Code       string
	err        error
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("completion provider returned status %d (%s)", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("completion provider returned status %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error { return e.err }

// Is lets callers match the provider outcomes with errors.Is.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == 429 && e.Code != "insufficient_quota"
	case ErrQuotaExhausted:
		return e.StatusCode == 402 || e.Code == "insufficient_quota"
	}
	return false
}

// Completer produces one assistant reply for a system prompt and a conversation.
type Completer interface {
	Complete(ctx context.Context, system string, messages []models.ChatMessage, opts ...CallOption) (string, error)
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

type completionsAdapter struct {
	svc *openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Client wraps the chat completion service.
type Client struct {
	chat        chatService
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// Opts holds configuration options for the client.
type Opts struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Option defines a configuration option for the client.
type Option func(*Opts)

func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at any OpenAI-compatible gateway.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithTimeout bounds each completion call.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// NewClient builds a client. A missing API key yields *config.MissingCredentialError.
func NewClient(opts ...Option) (*Client, error) {
	o := Opts{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	slog.Debug("genai.NewClient: creating client", "model", o.Model, "base_url", o.BaseURL,
		"temperature", o.Temperature, "max_tokens", o.MaxTokens, "api_key_SET", o.APIKey != "")

	if o.APIKey == "" {
		return nil, &config.MissingCredentialError{Name: config.EnvOpenAIKey, Service: "AI assistant"}
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(o.APIKey), option.WithMaxRetries(1)}
	if o.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)

	return &Client{
		chat:        completionsAdapter{svc: &cli.Chat.Completions},
		model:       o.Model,
		temperature: o.Temperature,
		maxTokens:   o.MaxTokens,
		timeout:     o.Timeout,
	}, nil
}

type callOpts struct {
	temperature float64
	maxTokens   int
}

// CallOption overrides client defaults for a single completion.
type CallOption func(*callOpts)

func Temperature(t float64) CallOption {
	return func(c *callOpts) { c.temperature = t }
}

func MaxTokens(n int) CallOption {
	return func(c *callOpts) { c.maxTokens = n }
}

// Complete sends the system prompt followed by the conversation and returns the first choice.
func (c *Client) Complete(ctx context.Context, system string, messages []models.ChatMessage, opts ...CallOption) (string, error) {
	co := callOpts{temperature: c.temperature, maxTokens: c.maxTokens}
	for _, opt := range opts {
		opt(&co)
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    buildMessages(system, messages),
		Temperature: openai.Float(co.temperature),
		MaxTokens:   openai.Int(int64(co.maxTokens)),
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		err = classify(err)
		slog.Error("Client.Complete: completion failed", "model", c.model, "messages", len(params.Messages), "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Client.Complete: no choices returned", "model", c.model)
		return "", ErrNoChoicesReturned
	}
	content := resp.Choices[0].Message.Content
	slog.Debug("Client.Complete: completion received", "model", c.model, "length", len(content), "elapsed", time.Since(start))
	return content, nil
}

func buildMessages(system string, messages []models.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, openai.SystemMessage(system))
	}
	for _, m := range messages {
		switch m.Role {
		case models.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// classify turns provider API errors into *StatusError so callers can tell rate limits and
// exhausted credits apart from other failures.
func classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return &StatusError{StatusCode: apierr.StatusCode, Code: apierr.Code, err: err}
	}
	return err
}
