package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/Kelp/internal/config"
	"github.com/BTreeMap/Kelp/internal/models"
	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func reply(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestComplete_Success(t *testing.T) {
	mock := &mockChatService{resp: reply("Hello World")}
	client := &Client{chat: mock, model: "test-model", temperature: 0.7, maxTokens: 100}

	history := []models.ChatMessage{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
		{Role: models.RoleUser, Content: "swap the bar"},
	}
	out, err := client.Complete(context.Background(), "system prompt", history, Temperature(0.3))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if got := len(mock.params.Messages); got != 4 {
		t.Errorf("expected system prompt plus 3 turns, got %d messages", got)
	}
	if string(mock.params.Model) != "test-model" {
		t.Errorf("expected model test-model, got %q", mock.params.Model)
	}
}

func TestComplete_EmptySystemPromptOmitted(t *testing.T) {
	mock := &mockChatService{resp: reply("ok")}
	client := &Client{chat: mock, model: "m"}
	if _, err := client.Complete(context.Background(), "  ", []models.ChatMessage{{Role: models.RoleUser, Content: "x"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(mock.params.Messages); got != 1 {
		t.Errorf("expected 1 message, got %d", got)
	}
}

func TestComplete_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.Complete(context.Background(), "sys", nil)
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrQuotaExhausted) {
		t.Errorf("plain errors must not be classified, got %v", err)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	mockResp := openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{}}
	client := &Client{chat: &mockChatService{resp: mockResp}}
	_, err := client.Complete(context.Background(), "sys", nil)
	if err != ErrNoChoicesReturned {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestComplete_ClassifiesProviderStatus(t *testing.T) {
	tests := []struct {
		name      string
		apiErr    *openai.Error
		rateLimit bool
		quota     bool
	}{
		{"rate limited", &openai.Error{StatusCode: 429}, true, false},
		{"payment required", &openai.Error{StatusCode: 402}, false, true},
		{"insufficient quota", &openai.Error{StatusCode: 429, Code: "insufficient_quota"}, false, true},
		{"server error", &openai.Error{StatusCode: 500}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{chat: &mockChatService{err: tt.apiErr}}
			_, err := client.Complete(context.Background(), "sys", nil)
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected *StatusError, got %T", err)
			}
			if se.StatusCode != tt.apiErr.StatusCode {
				t.Errorf("expected status %d, got %d", tt.apiErr.StatusCode, se.StatusCode)
			}
			if got := errors.Is(err, ErrRateLimited); got != tt.rateLimit {
				t.Errorf("errors.Is(ErrRateLimited) = %v, want %v", got, tt.rateLimit)
			}
			if got := errors.Is(err, ErrQuotaExhausted); got != tt.quota {
				t.Errorf("errors.Is(ErrQuotaExhausted) = %v, want %v", got, tt.quota)
			}
		})
	}
}

func TestComplete_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &Client{chat: &mockChatService{err: context.Canceled}}
	if _, err := client.Complete(ctx, "sys", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	_, err := NewClient()
	var missing *config.MissingCredentialError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingCredentialError, got %v", err)
	}
	if missing.Name != config.EnvOpenAIKey {
		t.Errorf("expected %s, got %s", config.EnvOpenAIKey, missing.Name)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithBaseURL("http://localhost:1234/v1"), WithModel("local"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Fatal("expected client instance, got nil")
	}
	if cli.model != "local" || cli.temperature != DefaultTemperature || cli.maxTokens != DefaultMaxTokens {
		t.Errorf("unexpected client settings: %+v", cli)
	}
}
