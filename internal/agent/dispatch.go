package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"
)

// IdentityArg is the argument every tool receives the verified customer in.
const IdentityArg = "customer_number"

// ToolStatus classifies a dispatch outcome.
type ToolStatus string

const (
	ToolStatusOK               ToolStatus = "ok"
	ToolStatusInvalidArguments ToolStatus = "invalid_arguments"
	ToolStatusError            ToolStatus = "error"
	ToolStatusUnknown          ToolStatus = "unknown_tool"
)

// ToolResult is the normalized outcome of a dispatch. Payload is always JSON,
// except for ToolStatusUnknown where it is the user-facing fallback reply.
type ToolResult struct {
	Tool         string
	Status       ToolStatus
	Payload      string
	IdentityUsed string
	Err          error
}

// UnknownToolReply is the reply used when the model asks for a tool that is
// not registered.
func UnknownToolReply(name string) string {
	return fmt.Sprintf("Sorry, I encountered an issue trying to use an internal tool ('%s'). Please try rephrasing your request.", name)
}

// Dispatcher validates and executes function calls against a registry.
type Dispatcher struct {
	tools   *ToolRegistry
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher. A positive timeout bounds each tool
// execution.
func NewDispatcher(tools *ToolRegistry, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		tools:   tools,
		timeout: timeout,
		logger:  logger.With("component", "dispatcher"),
	}
}

// Execute runs call with verifiedIdentity injected under IdentityArg. It never
// panics and never returns an empty payload.
func (d *Dispatcher) Execute(ctx context.Context, call FunctionCall, verifiedIdentity string) ToolResult {
	spec, ok := d.tools.Lookup(call.Name)
	if !ok {
		d.logger.Warn("model requested unknown tool", "tool", call.Name)
		return ToolResult{
			Tool:    call.Name,
			Status:  ToolStatusUnknown,
			Payload: UnknownToolReply(call.Name),
		}
	}

	if call.ArgumentsType != "" {
		err := fmt.Errorf("%w: arguments must be an object, got %s", ErrInvalidArguments, call.ArgumentsType)
		d.logger.Warn("tool failed", "tool", spec.Name, "status", ToolStatusInvalidArguments, "error", err)
		return ToolResult{
			Tool:         spec.Name,
			Status:       ToolStatusInvalidArguments,
			Payload:      errorPayload(fmt.Sprintf("incorrect arguments for tool %s", spec.Name)),
			IdentityUsed: verifiedIdentity,
			Err:          err,
		}
	}

	args := make(map[string]any, len(call.Arguments)+1)
	maps.Copy(args, call.Arguments)
	if claimed, present := args[IdentityArg]; present && fmt.Sprint(claimed) != verifiedIdentity {
		d.logger.Warn("overriding model-supplied identity", "tool", spec.Name, "claimed", claimed)
	}
	args[IdentityArg] = verifiedIdentity

	result := ToolResult{Tool: spec.Name, IdentityUsed: verifiedIdentity}
	start := time.Now()
	payload, err := d.invoke(ctx, spec, args)
	latency := time.Since(start)

	switch {
	case errors.Is(err, ErrInvalidArguments):
		result.Status = ToolStatusInvalidArguments
		result.Err = err
		result.Payload = errorPayload(fmt.Sprintf("incorrect arguments for tool %s", spec.Name))
	case err != nil:
		result.Status = ToolStatusError
		result.Err = err
		result.Payload = errorPayload(fmt.Sprintf("error executing tool %s", spec.Name))
	case !json.Valid(payload):
		result.Status = ToolStatusError
		result.Err = fmt.Errorf("tool %s returned invalid JSON", spec.Name)
		result.Payload = errorPayload(fmt.Sprintf("error executing tool %s", spec.Name))
	default:
		result.Status = ToolStatusOK
		result.Payload = string(payload)
	}

	if result.Err != nil {
		d.logger.Warn("tool failed", "tool", spec.Name, "status", result.Status, "latency_ms", latency.Milliseconds(), "error", result.Err)
	} else {
		d.logger.Debug("tool executed", "tool", spec.Name, "latency_ms", latency.Milliseconds(), "bytes", len(result.Payload))
	}
	return result
}

type toolOutput struct {
	payload json.RawMessage
	err     error
}

// invoke returns when the handler finishes or ctx expires, whichever comes
// first, even if the handler ignores ctx.
func (d *Dispatcher) invoke(ctx context.Context, spec ToolSpec, args map[string]any) (json.RawMessage, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	done := make(chan toolOutput, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- toolOutput{err: fmt.Errorf("tool %s panicked: %v", spec.Name, rec)}
			}
		}()
		payload, err := spec.Handler(ctx, args)
		done <- toolOutput{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		return out.payload, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("tool %s: %w", spec.Name, ctx.Err())
	}
}

func errorPayload(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
