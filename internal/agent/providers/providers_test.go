package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaClientChat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"deepseek-r1","message":{"role":"assistant","content":"Hello from the oven"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	c, err := NewOllamaClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	out, err := c.Chat(context.Background(), &ChatRequest{
		Model:    "deepseek-r1",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out != "Hello from the oven" {
		t.Fatalf("expected completion text, got %q", out)
	}
	if got["stream"] != false {
		t.Fatalf("expected stream=false in request, got %v", got["stream"])
	}
	if got["model"] != "deepseek-r1" {
		t.Fatalf("expected model in request, got %v", got["model"])
	}
}

func TestOllamaClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model 'deepseek-r1' not found"}`))
	}))
	defer srv.Close()

	c, err := NewOllamaClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Chat(context.Background(), &ChatRequest{Model: "deepseek-r1"}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestOllamaClientInvalidHost(t *testing.T) {
	if _, err := NewOllamaClient("http://[::1", nil); err == nil {
		t.Fatal("expected invalid host error")
	}
}

func TestOpenAIClientChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Fresh bread"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("openai", "test-key", srv.URL+"/v1/", srv.Client())
	out, err := c.Chat(context.Background(), &ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out != "Fresh bread" {
		t.Fatalf("expected completion text, got %q", out)
	}
}

func TestOpenAIClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided: sk-live123","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("groq", "bad", srv.URL, srv.Client())
	_, err := c.Chat(context.Background(), &ChatRequest{Model: "m"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Provider != "groq" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if strings.Contains(apiErr.Body, "sk-live123") {
		t.Fatalf("expected key to be scrubbed, got %s", apiErr.Body)
	}
}
