package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

// DefaultOllamaHost is used when no base URL is configured.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaClient talks to an Ollama server's /api/chat endpoint.
type OllamaClient struct {
	client *ollama.Client
	host   string
}

// NewOllamaClient creates a client for the given host. A nil httpClient uses
// http.DefaultClient; request deadlines come from the caller's context.
func NewOllamaClient(host string, httpClient *http.Client) (*OllamaClient, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultOllamaHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaClient{client: ollama.NewClient(u, httpClient), host: host}, nil
}

// Chat sends a non-streaming chat request and returns the completion text.
func (c *OllamaClient) Chat(ctx context.Context, req *ChatRequest) (string, error) {
	stream := false
	messages := make([]ollama.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, ollama.Message{Role: m.Role, Content: m.Content})
	}
	chatReq := &ollama.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
	}
	if req.Temperature > 0 {
		chatReq.Options = map[string]any{"temperature": req.Temperature}
	}

	var content strings.Builder
	err := c.client.Chat(ctx, chatReq, func(resp ollama.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var statusErr ollama.StatusError
		if errors.As(err, &statusErr) {
			return "", newAPIError("ollama", statusErr.StatusCode, statusErr.ErrorMessage)
		}
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return content.String(), nil
}
