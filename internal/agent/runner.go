// Package agent implements the Bake Assist chat turn: a decision generation,
// at most one tool call, and a response generation over the tool's result.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bakeassist/bakeassist/internal/config"
	"github.com/bakeassist/bakeassist/internal/system/metrics"
	"github.com/bakeassist/bakeassist/internal/system/tasklog"
)

// Generation stages.
const (
	StageDecision = "decision"
	StageResponse = "response"
)

// Turn outcomes, used for metrics and the audit log.
const (
	OutcomeReply            = "reply"
	OutcomeTool             = "tool"
	OutcomeUnknownTool      = "unknown_tool"
	OutcomeGenerationFailed = "generation_failed"
)

// GenerationError reports which generation of a turn failed.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// AuditLog receives one record per turn.
type AuditLog interface {
	Log(rec *tasklog.TaskRecord) error
}

// Runner executes chat turns.
type Runner struct {
	logger     *slog.Logger
	models     Generator
	tools      *ToolRegistry
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	audit      AuditLog
	modelName  string
}

// RunnerOption configures optional Runner collaborators.
type RunnerOption func(*Runner)

// WithMetrics records turn, tool and generation metrics.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithAuditLog writes every turn to the audit log.
func WithAuditLog(a AuditLog) RunnerOption {
	return func(r *Runner) { r.audit = a }
}

// WithModelName labels audit records.
func WithModelName(name string) RunnerOption {
	return func(r *Runner) { r.modelName = name }
}

// NewRunner creates a runner. Tool executions are bounded by cfg.Tools.Timeout.
func NewRunner(cfg *config.Config, models Generator, tools *ToolRegistry, logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		logger:     logger.With("component", "agent"),
		models:     models,
		tools:      tools,
		dispatcher: NewDispatcher(tools, cfg.Tools.Timeout, logger),
		modelName:  cfg.Model.Provider + "/" + cfg.Model.Name,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunRequest is one chat turn. CustomerNumber must already be verified.
type RunRequest struct {
	TurnID         string
	CustomerNumber string
	Message        string
	Channel        string
}

// RunResult is the outcome of a turn.
type RunResult struct {
	Reply       string
	Outcome     string
	Call        *FunctionCall
	Tool        *ToolResult
	Generations int
}

// Run executes one turn. Errors are *GenerationError values wrapping
// ErrNoResponse; tool failures are not errors.
func (r *Runner) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	start := time.Now()
	log := r.logger.With("turn_id", req.TurnID, "customer", req.CustomerNumber, "channel", req.Channel)
	log.Debug("agent run", "message_len", len(req.Message))

	res, err := r.run(ctx, req, log)

	outcome := OutcomeGenerationFailed
	if res != nil {
		outcome = res.Outcome
	}
	r.metrics.ObserveTurn(outcome)
	r.record(req, res, err, time.Since(start), log)

	if err != nil {
		log.Error("turn failed", "error", err, "latency_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	log.Info("turn complete",
		"outcome", res.Outcome,
		"generations", res.Generations,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (r *Runner) run(ctx context.Context, req *RunRequest, log *slog.Logger) (*RunResult, error) {
	// 1. Decision turn.
	decision := BuildDecisionPrompt(r.tools.Descriptions(), req.CustomerNumber, req.Message)
	first, err := r.generate(ctx, StageDecision, decision)
	if err != nil {
		return nil, &GenerationError{Stage: StageDecision, Err: err}
	}

	// 2. Function call?
	call, perr := ParseFunctionCall(first)
	if perr != nil {
		log.Warn("ignoring malformed function call", "error", perr)
	}
	if call == nil {
		return &RunResult{Reply: Sanitize(first), Outcome: OutcomeReply, Generations: 1}, nil
	}
	log.Info("model requested tool", "tool", call.Name)

	// 3. Dispatch.
	result := r.dispatcher.Execute(ctx, *call, req.CustomerNumber)
	r.metrics.ObserveToolCall(call.Name, string(result.Status))
	if result.Status == ToolStatusUnknown {
		return &RunResult{
			Reply:       result.Payload,
			Outcome:     OutcomeUnknownTool,
			Call:        call,
			Tool:        &result,
			Generations: 1,
		}, nil
	}

	// 4. Response turn over the tool payload.
	second, err := r.generate(ctx, StageResponse, BuildResponsePrompt(result.Payload, req.Message))
	if err != nil {
		return nil, &GenerationError{Stage: StageResponse, Err: err}
	}
	return &RunResult{
		Reply:       Sanitize(second),
		Outcome:     OutcomeTool,
		Call:        call,
		Tool:        &result,
		Generations: 2,
	}, nil
}

func (r *Runner) generate(ctx context.Context, stage, prompt string) (string, error) {
	start := time.Now()
	out, err := r.models.Generate(ctx, prompt)
	r.metrics.ObserveGeneration(stage, time.Since(start), err)
	return out, err
}

func (r *Runner) record(req *RunRequest, res *RunResult, runErr error, elapsed time.Duration, log *slog.Logger) {
	if r.audit == nil {
		return
	}
	rec := &tasklog.TaskRecord{
		TurnID:     req.TurnID,
		Action:     tasklog.ActionChat,
		Channel:    req.Channel,
		Customer:   req.CustomerNumber,
		Message:    req.Message,
		Status:     tasklog.StatusSuccess,
		DurationMs: elapsed.Milliseconds(),
		Model:      r.modelName,
	}
	if res != nil {
		rec.Reply = res.Reply
		rec.Generations = res.Generations
		if res.Tool != nil {
			rec.Tool = res.Tool.Tool
			rec.ToolStatus = string(res.Tool.Status)
		}
	}
	if runErr != nil {
		rec.Status = tasklog.StatusError
		rec.ErrorMessage = runErr.Error()
	}
	if err := r.audit.Log(rec); err != nil {
		log.Warn("audit log write failed", "error", err)
	}
}
