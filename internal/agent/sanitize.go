package agent

import (
	"regexp"
	"strings"
)

// FallbackReply is returned when a completion has no usable text.
const FallbackReply = "Sorry, I encountered an unexpected issue generating a response."

var (
	reasoningPattern    = regexp.MustCompile(`(?is)<think>.*?</think>`)
	leftoverCallPattern = regexp.MustCompile(`(?is)<function_call>.*?</function_call>`)
)

// Sanitize strips <think> reasoning spans and stray function-call blocks from
// a completion and trims it. Text that is empty afterwards becomes
// FallbackReply. Removal repeats until nothing matches so spans nested
// across a removed span cannot survive.
func Sanitize(text string) string {
	out := text
	for {
		next := leftoverCallPattern.ReplaceAllString(reasoningPattern.ReplaceAllString(out, ""), "")
		if next == out {
			break
		}
		out = next
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return FallbackReply
	}
	return out
}
