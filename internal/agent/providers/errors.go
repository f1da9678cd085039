package providers

import (
	"fmt"
	"regexp"
	"strings"
)

const maxAPIErrorChars = 200

// APIError represents a non-2xx response from a model backend.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Body)
}

func newAPIError(provider string, statusCode int, body string) *APIError {
	return &APIError{
		Provider:   provider,
		StatusCode: statusCode,
		Body:       sanitizeAPIError(body),
	}
}

func sanitizeAPIError(input string) string {
	scrubbed := scrubSecretPatterns(strings.TrimSpace(input))
	runes := []rune(scrubbed)
	if len(runes) <= maxAPIErrorChars {
		return scrubbed
	}
	return string(runes[:maxAPIErrorChars]) + "..."
}

var secretPattern = regexp.MustCompile(`(sk-|sk_or-|gsk_|Bearer )[A-Za-z0-9._:\-]+`)

// scrubSecretPatterns redacts API keys and bearer tokens echoed back by backends.
func scrubSecretPatterns(input string) string {
	return secretPattern.ReplaceAllString(input, "[REDACTED]")
}
