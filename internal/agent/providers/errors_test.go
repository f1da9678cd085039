package providers

import (
	"strings"
	"testing"
)

func TestScrubSecretPatterns(t *testing.T) {
	in := `{"error":"bad key sk-abc123xyz, header Bearer ey.J0k3n and groq gsk_hello"}`
	out := scrubSecretPatterns(in)
	for _, leaked := range []string{"sk-abc123xyz", "ey.J0k3n", "gsk_hello"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("expected %q to be redacted, got: %s", leaked, out)
		}
	}
	if strings.Count(out, "[REDACTED]") != 3 {
		t.Fatalf("expected three redactions, got: %s", out)
	}
}

func TestScrubSecretPatternsLeavesBarePrefix(t *testing.T) {
	in := "task- sk- done"
	if out := scrubSecretPatterns(in); out != in {
		t.Fatalf("expected no change, got: %s", out)
	}
}

func TestSanitizeAPIErrorTruncates(t *testing.T) {
	in := strings.Repeat("x", maxAPIErrorChars+20)
	out := sanitizeAPIError(in)
	if len([]rune(out)) != maxAPIErrorChars+3 {
		t.Fatalf("expected truncation to %d runes plus ellipsis, got len=%d", maxAPIErrorChars, len([]rune(out)))
	}
	if !strings.HasSuffix(out, "...") {
		t.Fatalf("expected ellipsis suffix, got: %s", out)
	}
}

func TestNewAPIErrorSanitizes(t *testing.T) {
	err := newAPIError("openai", 401, "token sk-secret should not leak")
	if !strings.Contains(err.Body, "[REDACTED]") {
		t.Fatalf("expected sanitized body, got: %s", err.Body)
	}
	if !strings.HasPrefix(err.Error(), "openai API error 401") {
		t.Fatalf("unexpected error text: %s", err.Error())
	}
}
