package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bakeassist/bakeassist/internal/agent/providers"
	"github.com/bakeassist/bakeassist/internal/config"
)

var (
	// ErrNoResponse is wrapped by every generation failure.
	ErrNoResponse = errors.New("no response from language model")
	// ErrUnknownProvider is returned for provider names with no builder.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Generator produces a raw completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider is a model backend client.
type Provider interface {
	Chat(ctx context.Context, req *providers.ChatRequest) (string, error)
}

// ModelManager is the Generator backed by the configured provider. Every call
// is bounded by the configured model timeout.
type ModelManager struct {
	cfg      config.ModelConfig
	logger   *slog.Logger
	provider Provider
}

// NewModelManager creates the provider named in cfg.
func NewModelManager(cfg config.ModelConfig, logger *slog.Logger) (*ModelManager, error) {
	p, err := NewProviderFactory().Create(cfg.Provider, cfg, &http.Client{})
	if err != nil {
		return nil, err
	}
	return NewModelManagerWithProvider(cfg, p, logger), nil
}

// NewModelManagerWithProvider wraps an existing provider.
func NewModelManagerWithProvider(cfg config.ModelConfig, p Provider, logger *slog.Logger) *ModelManager {
	return &ModelManager{
		cfg:      cfg,
		logger:   logger.With("component", "models"),
		provider: p,
	}
}

// Model returns "provider/model".
func (m *ModelManager) Model() string {
	return m.cfg.Provider + "/" + m.cfg.Name
}

// Generate sends prompt as a single user message. Failures wrap ErrNoResponse
// and never return partial text. An empty completion is logged and returned
// as "".
func (m *ModelManager) Generate(ctx context.Context, prompt string) (string, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	m.logger.Debug("calling model", "provider", m.cfg.Provider, "model", m.cfg.Name, "prompt_len", len(prompt))
	out, err := m.provider.Chat(ctx, &providers.ChatRequest{
		Model:       m.cfg.Name,
		Messages:    []providers.Message{{Role: "user", Content: prompt}},
		Temperature: m.cfg.Temperature,
	})
	latency := time.Since(start)
	if err != nil {
		reason := formatProviderError(m.cfg.Provider, err)
		if errors.Is(err, context.DeadlineExceeded) {
			reason = fmt.Sprintf("timed out after %s", m.cfg.Timeout)
		}
		m.logger.Error("model call failed", "provider", m.cfg.Provider, "model", m.cfg.Name, "latency_ms", latency.Milliseconds(), "error", reason)
		return "", fmt.Errorf("%w: %s", ErrNoResponse, reason)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		m.logger.Warn("empty completion from model", "provider", m.cfg.Provider, "model", m.cfg.Name)
	}
	m.logger.Debug("model response", "latency_ms", latency.Milliseconds(), "len", len(out))
	return out, nil
}

// ProviderBuilder constructs a provider from config.
type ProviderBuilder func(cfg config.ModelConfig, httpClient *http.Client) (Provider, error)

// ProviderFactory maps provider names to builders.
type ProviderFactory struct {
	builders map[string]ProviderBuilder
}

// NewProviderFactory creates a factory with built-in providers registered.
func NewProviderFactory() *ProviderFactory {
	f := &ProviderFactory{builders: map[string]ProviderBuilder{}}
	f.Register("ollama", func(cfg config.ModelConfig, hc *http.Client) (Provider, error) {
		c, err := providers.NewOllamaClient(cfg.BaseURL, hc)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
	f.Register("openai", func(cfg config.ModelConfig, hc *http.Client) (Provider, error) {
		if strings.TrimSpace(cfg.APIKey) == "" && strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, fmt.Errorf("openai API key not configured")
		}
		return providers.NewOpenAIClient("openai", cfg.APIKey, cfg.BaseURL, hc), nil
	})
	registerOpenAICompatProviders(f, "openrouter", "groq", "deepseek", "together", "mistral")
	return f
}

func registerOpenAICompatProviders(f *ProviderFactory, names ...string) {
	for _, name := range names {
		providerName := name
		f.Register(providerName, func(cfg config.ModelConfig, hc *http.Client) (Provider, error) {
			if strings.TrimSpace(cfg.APIKey) == "" {
				return nil, fmt.Errorf("%s API key not configured", providerName)
			}
			baseURL := strings.TrimSpace(cfg.BaseURL)
			if baseURL == "" {
				baseURL = defaultBaseURLForProvider(providerName)
			}
			return providers.NewOpenAIClient(providerName, cfg.APIKey, baseURL, hc), nil
		})
	}
}

func defaultBaseURLForProvider(provider string) string {
	switch provider {
	case "openrouter":
		return "https://openrouter.ai/api/v1"
	case "groq":
		return "https://api.groq.com/openai/v1"
	case "deepseek":
		return "https://api.deepseek.com/v1"
	case "together":
		return "https://api.together.xyz/v1"
	case "mistral":
		return "https://api.mistral.ai/v1"
	default:
		return providers.DefaultOpenAIBaseURL
	}
}

// Register adds or replaces a builder.
func (f *ProviderFactory) Register(name string, builder ProviderBuilder) {
	f.builders[strings.ToLower(name)] = builder
}

// Has reports whether provider name can be resolved by this factory.
func (f *ProviderFactory) Has(name string) bool {
	_, ok := f.builders[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Create instantiates a provider by name.
func (f *ProviderFactory) Create(name string, cfg config.ModelConfig, httpClient *http.Client) (Provider, error) {
	builder, ok := f.builders[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return builder(cfg, httpClient)
}

func formatProviderError(provider string, err error) string {
	var apiErr *providers.APIError
	if errors.As(err, &apiErr) {
		statusText := http.StatusText(apiErr.StatusCode)
		if statusText == "" {
			statusText = "Unknown Status"
		}
		return fmt.Sprintf("%s API error (%d %s): %s", provider, apiErr.StatusCode, statusText, apiErr.Body)
	}
	return err.Error()
}
