package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIBaseURL is the public OpenAI API.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	name   string
	client *openai.Client
}

// NewOpenAIClient creates a client. name labels errors (openai, groq, ...).
func NewOpenAIClient(name, apiKey, baseURL string, httpClient *http.Client) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultOpenAIBaseURL
	}
	cfg.BaseURL = base
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIClient{name: name, client: openai.NewClientWithConfig(cfg)}
}

// Chat sends a chat completion request and returns the first choice's text.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", newAPIError(c.name, apiErr.HTTPStatusCode, apiErr.Message)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", newAPIError(c.name, reqErr.HTTPStatusCode, reqErr.Error())
		}
		return "", fmt.Errorf("%s chat: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
