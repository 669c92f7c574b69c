// Package chat drives one user turn: it sends the conversation to a
// provider, runs the tool calls the model asks for and resends the
// augmented conversation until the model answers without tools.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"seekchat/model"
	"seekchat/toolcall"
)

// DefaultMaxToolRounds keeps a single tool round trip per user turn.
const DefaultMaxToolRounds = 1

// State is a step of the orchestration state machine.
type State int

const (
	StateIdle State = iota
	StateSending
	StateToolsDetected
	StateExecuting
	StateResending
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateToolsDetected:
		return "tools_detected"
	case StateExecuting:
		return "executing"
	case StateResending:
		return "resending"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Catalog lists and runs the tools of the active tool servers.
type Catalog interface {
	ListActiveTools(ctx context.Context) ([]model.ToolDescriptor, error)
	CallTool(ctx context.Context, serverID, toolID string, args map[string]any) model.ToolExecution
}

// Providers picks the adapter for a provider id.
type Providers interface {
	For(providerID string) model.Provider
}

// RunRequest is one orchestrated send.
type RunRequest struct {
	Messages    []model.Message
	Provider    model.ProviderConfig
	Model       model.ModelConfig
	Temperature *float64
	MaxTokens   int
	// Tools is the snapshot taken at the start of the turn. It is never
	// refreshed while the run is in progress.
	Tools []model.ToolDescriptor

	// OnProgress receives the accumulated completion of the current round
	// with the tool call results of every round so far.
	OnProgress model.ProgressFunc
	// OnState observes state transitions.
	OnState func(State)
}

// Orchestrator runs the send, execute, resend loop.
type Orchestrator struct {
	providers Providers
	catalog   Catalog
	maxRounds int
	logger    *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMaxToolRounds sets how many tool rounds one turn may run. Values
// below one are ignored.
func WithMaxToolRounds(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRounds = n
		}
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates an orchestrator over providers and catalog.
func NewOrchestrator(providers Providers, catalog Catalog, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		providers: providers,
		catalog:   catalog,
		maxRounds: DefaultMaxToolRounds,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "chat")
	return o
}

// run is the mutable state of one Run call.
type run struct {
	req      RunRequest
	state    State
	messages []model.Message
	results  []model.ToolCallResult
}

func (r *run) set(s State) {
	r.state = s
	if r.req.OnState != nil {
		r.req.OnState(s)
	}
}

func (r *run) progress(c model.Completion) {
	if r.req.OnProgress == nil {
		return
	}
	c.ToolCallResults = r.results
	r.req.OnProgress(c.Clone())
}

// Run sends req and keeps executing tool calls until the model answers
// without any or the round limit is reached. The returned completion
// carries the final round's text and the tool call results of all rounds.
//
// A cancelled ctx ends the run with an error matching model.ErrCancelled.
// Tool lookup, argument and execution failures never end the run; they are
// reported to the model as tool results.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*model.Completion, error) {
	r := &run{req: req, state: StateIdle, messages: append([]model.Message(nil), req.Messages...)}

	p := o.providers.For(req.Provider.ID)
	for round := 0; ; round++ {
		if round == 0 {
			r.set(StateSending)
		} else {
			r.set(StateResending)
		}

		var tools []model.ToolDescriptor
		if round < o.maxRounds {
			tools = req.Tools
		}

		o.logger.Debug("sending", "provider", req.Provider.ID, "model", req.Model.ID,
			"round", round, "messages", len(r.messages), "tools", len(tools))

		var onProgress model.ProgressFunc
		if req.OnProgress != nil {
			onProgress = r.progress
		}
		completion, err := p.Send(ctx, model.Request{
			Messages:    r.messages,
			Provider:    req.Provider,
			Model:       req.Model,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			Tools:       tools,
			OnProgress:  onProgress,
		})
		if err != nil {
			return nil, o.finish(ctx, r, err)
		}

		if len(completion.ToolCalls) == 0 || round >= o.maxRounds {
			if len(completion.ToolCalls) > 0 {
				o.logger.Info("tool round limit reached, ignoring tool calls",
					"rounds", o.maxRounds, "calls", len(completion.ToolCalls))
			}
			final := completion.Clone()
			final.ToolCalls = nil
			final.ToolCallResults = r.results
			r.set(StateCompleted)
			return &final, nil
		}

		r.set(StateToolsDetected)
		if err := o.executeRound(ctx, r, *completion); err != nil {
			return nil, o.finish(ctx, r, err)
		}
	}
}

// finish moves r into its failure state and normalizes err.
func (o *Orchestrator) finish(ctx context.Context, r *run, err error) error {
	if ctx.Err() != nil || model.IsCancelled(err) {
		r.set(StateCancelled)
		o.logger.Info("generation cancelled")
		if model.IsCancelled(err) {
			return err
		}
		return model.Cancelled(ctx.Err())
	}
	r.set(StateFailed)
	o.logger.Error("generation failed", "error", err)
	return err
}

// executeRound runs every tool call of completion in order and appends
// the assistant message and one tool message per call to r.messages.
func (o *Orchestrator) executeRound(ctx context.Context, r *run, completion model.Completion) error {
	r.set(StateExecuting)

	r.messages = append(r.messages, model.Message{
		Role:      model.RoleAssistant,
		Content:   completion.Content,
		ToolCalls: completion.ToolCalls,
	})

	for _, call := range completion.ToolCalls {
		if err := ctx.Err(); err != nil {
			return model.Cancelled(err)
		}

		result := o.newResult(call, r.req.Tools)
		r.results = append(r.results, result)
		r.progress(completion)

		o.execute(ctx, &r.results[len(r.results)-1], call, r.req.Tools)
		if err := ctx.Err(); err != nil {
			r.results[len(r.results)-1].Fail(model.ErrCancelled.Error())
			return model.Cancelled(err)
		}
		r.progress(completion)

		r.messages = append(r.messages, model.Message{
			Role:       model.RoleTool,
			Content:    toolMessageContent(r.results[len(r.results)-1]),
			ToolCallID: call.ID,
		})
	}
	return nil
}

func (o *Orchestrator) newResult(call model.ToolCall, tools []model.ToolDescriptor) model.ToolCallResult {
	result := model.ToolCallResult{
		ID:         call.ID,
		ToolID:     call.Function.Name,
		ToolName:   call.Function.Name,
		Parameters: toolcall.Recover(call.Function.Arguments),
		Status:     model.ToolCallRunning,
	}
	if desc, ok := model.FindTool(tools, call.Function.Name); ok {
		result.ToolID = desc.ID
		result.ToolName = desc.Name
		result.ServerName = desc.ServerName
	}
	return result
}

// execute resolves call against the snapshot and runs it, finalizing
// result exactly once.
func (o *Orchestrator) execute(ctx context.Context, result *model.ToolCallResult, call model.ToolCall, tools []model.ToolDescriptor) {
	desc, ok := model.FindTool(tools, call.Function.Name)
	if !ok {
		o.logger.Warn("model requested unknown tool", "tool", call.Function.Name)
		result.Fail(fmt.Sprintf("%s: %s", model.ErrToolNotFound, call.Function.Name))
		return
	}

	o.logger.Debug("calling tool", "tool", desc.ID, "server", desc.ServerID, "args", result.Parameters)
	exec := o.catalog.CallTool(ctx, desc.ServerID, desc.ID, result.Parameters)
	if !exec.Success {
		msg := exec.Message
		if msg == "" {
			msg = "tool call failed"
		}
		o.logger.Warn("tool call failed", "tool", desc.ID, "error", msg)
		result.Fail(msg)
		return
	}
	result.Succeed(exec.Result)
}

// toolMessageContent is what the model sees for a finished call: the JSON
// result, or an {"error": ...} object.
func toolMessageContent(result model.ToolCallResult) string {
	var v any = map[string]string{"error": result.Error}
	if result.Status == model.ToolCallSuccess {
		v = result.Result
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
