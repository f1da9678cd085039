// Package providers contains the model backend clients used by the agent.
package providers

// Message is a single chat message sent to a backend.
type Message struct {
	Role    string
	Content string
}

// ChatRequest is a backend-neutral non-streaming completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
}
