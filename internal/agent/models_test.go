package agent

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bakeassist/bakeassist/internal/agent/providers"
	"github.com/bakeassist/bakeassist/internal/config"
)

type providerFunc func(ctx context.Context, req *providers.ChatRequest) (string, error)

func (f providerFunc) Chat(ctx context.Context, req *providers.ChatRequest) (string, error) {
	return f(ctx, req)
}

func testModelConfig() config.ModelConfig {
	cfg := config.Default().Model
	cfg.Timeout = time.Second
	return cfg
}

func TestGenerateSendsSingleUserMessage(t *testing.T) {
	var got *providers.ChatRequest
	m := NewModelManagerWithProvider(testModelConfig(), providerFunc(func(_ context.Context, req *providers.ChatRequest) (string, error) {
		got = req
		return "  <think>x</think>Hello  \n", nil
	}), discardLogger())

	out, err := m.Generate(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "<think>x</think>Hello" {
		t.Fatalf("expected raw trimmed completion, got %q", out)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "the prompt" {
		t.Fatalf("unexpected request messages: %+v", got.Messages)
	}
	if got.Model != "deepseek-r1" {
		t.Fatalf("expected configured model, got %s", got.Model)
	}
}

func TestGenerateWrapsProviderErrors(t *testing.T) {
	m := NewModelManagerWithProvider(testModelConfig(), providerFunc(func(context.Context, *providers.ChatRequest) (string, error) {
		return "partial", &providers.APIError{Provider: "ollama", StatusCode: http.StatusServiceUnavailable, Body: "loading model"}
	}), discardLogger())

	out, err := m.Generate(context.Background(), "p")
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}
	if out != "" {
		t.Fatalf("expected no partial text, got %q", out)
	}
	if !strings.Contains(err.Error(), "503 Service Unavailable") {
		t.Fatalf("expected formatted status in error, got %v", err)
	}
}

func TestGenerateTimesOut(t *testing.T) {
	cfg := testModelConfig()
	cfg.Timeout = 20 * time.Millisecond
	m := NewModelManagerWithProvider(cfg, providerFunc(func(ctx context.Context, _ *providers.ChatRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), discardLogger())

	_, err := m.Generate(context.Background(), "p")
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out after 20ms") {
		t.Fatalf("expected timeout reason, got %v", err)
	}
}

func TestGenerateEmptyCompletionIsNotAnError(t *testing.T) {
	m := NewModelManagerWithProvider(testModelConfig(), providerFunc(func(context.Context, *providers.ChatRequest) (string, error) {
		return "   ", nil
	}), discardLogger())
	out, err := m.Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty completion, got %q", out)
	}
}

func TestProviderFactory(t *testing.T) {
	f := NewProviderFactory()
	for _, name := range []string{"ollama", "openai", "OpenRouter", "groq", "deepseek", "together", "mistral"} {
		if !f.Has(name) {
			t.Fatalf("expected provider %s to be registered", name)
		}
	}

	cfg := testModelConfig()
	if _, err := f.Create("bogus", cfg, http.DefaultClient); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if _, err := f.Create("groq", cfg, http.DefaultClient); err == nil {
		t.Fatal("expected missing API key error for groq")
	}
	cfg.APIKey = "gsk_test"
	if _, err := f.Create("groq", cfg, http.DefaultClient); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.Create("ollama", cfg, http.DefaultClient); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefaultBaseURLForProvider(t *testing.T) {
	if got := defaultBaseURLForProvider("groq"); got != "https://api.groq.com/openai/v1" {
		t.Fatalf("unexpected groq base URL %s", got)
	}
	if got := defaultBaseURLForProvider("unknown"); got != providers.DefaultOpenAIBaseURL {
		t.Fatalf("expected openai default, got %s", got)
	}
}

func TestNewModelManagerRejectsUnknownProvider(t *testing.T) {
	cfg := testModelConfig()
	cfg.Provider = "carrier-pigeon"
	if _, err := NewModelManager(cfg, discardLogger()); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}
