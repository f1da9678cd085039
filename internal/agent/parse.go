package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	functionCallOpen  = "<function_call>"
	functionCallClose = "</function_call>"
)

var functionCallPattern = regexp.MustCompile(`(?is)<function_call>(.*?)</function_call>`)

// ErrMalformedCall is returned alongside a nil call when a function-call block
// is present but cannot be used.
var ErrMalformedCall = errors.New("malformed function call")

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	// ArgumentsType is the JSON type of "arguments" when it was neither an
	// object nor null. Such calls fail dispatch with ErrInvalidArguments.
	ArgumentsType string `json:"-"`
}

// ParseFunctionCall extracts the first <function_call>{...}</function_call>
// block from a model completion.
//
// A nil call with a nil error means no call was requested. A nil call with an
// error wrapping ErrMalformedCall means a block was present but unusable; the
// turn continues as if no tool was requested. Any object carrying both "name"
// and "arguments" is returned; the dispatcher judges the values.
func ParseFunctionCall(raw string) (*FunctionCall, error) {
	m := functionCallPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, nil
	}
	inner := strings.TrimSpace(m[1])

	start := strings.Index(inner, "{")
	end := strings.LastIndex(inner, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object inside %s", ErrMalformedCall, functionCallOpen)
	}
	body := stripCodeFence(inner[start : end+1])

	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCall, err)
	}

	nameRaw, hasName := obj["name"]
	argsRaw, hasArgs := obj["arguments"]
	if !hasName || !hasArgs {
		return nil, fmt.Errorf("%w: object needs both \"name\" and \"arguments\"", ErrMalformedCall)
	}
	call := &FunctionCall{Name: callName(nameRaw), Arguments: map[string]any{}}
	switch v := argsRaw.(type) {
	case nil:
	case map[string]any:
		call.Arguments = v
	default:
		call.ArgumentsType = jsonType(v)
	}
	return call, nil
}

// callName renders a non-string name as its JSON text so it can never match a
// registered tool by accident of formatting.
func callName(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonType(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", v)
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
