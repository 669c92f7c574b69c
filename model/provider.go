package model

import "context"

// DefaultTemperature is used when a request leaves Temperature unset.
const DefaultTemperature = 0.7

// Provider sends one request to an AI model provider.
//
// This interface is defined in the model package (not provider package) to
// avoid import cycles: provider implementations import model, and the chat
// orchestration depends only on this contract.
type Provider interface {
	// Send issues a single model call. Streaming is used if and only if
	// req.OnProgress is set. OnComplete fires at most once, after the last
	// progress event, and only on success. Cancelling ctx yields an error
	// matching ErrCancelled; HTTP failures yield a *TransportError.
	Send(ctx context.Context, req Request) (*Completion, error)
}

// ProgressFunc receives a snapshot of the accumulated completion after each
// stream record that changed it.
type ProgressFunc func(Completion)

// Request is a provider-agnostic model call.
type Request struct {
	Messages    []Message
	Provider    ProviderConfig
	Model       ModelConfig
	Temperature *float64
	MaxTokens   int
	// Tools are omitted from the wire request when empty.
	Tools      []ToolDescriptor
	OnProgress ProgressFunc
	OnComplete func(Completion)
}

// EffectiveTemperature returns the request temperature or the default.
func (r Request) EffectiveTemperature() float64 {
	if r.Temperature == nil {
		return DefaultTemperature
	}
	return *r.Temperature
}

// Completion is the accumulated result of one model call.
type Completion struct {
	Content          string
	ReasoningContent string
	ToolCalls        []ToolCall
	// ToolCallResults is filled by the orchestrator, never by adapters.
	ToolCallResults []ToolCallResult
}

// Clone returns a deep copy safe to hand to callbacks.
func (c Completion) Clone() Completion {
	out := c
	if c.ToolCalls != nil {
		out.ToolCalls = append([]ToolCall(nil), c.ToolCalls...)
	}
	if c.ToolCallResults != nil {
		out.ToolCallResults = append([]ToolCallResult(nil), c.ToolCallResults...)
	}
	return out
}

// ProviderConfig is a resolved provider record. The core never mutates it.
type ProviderConfig struct {
	ID      string
	Name    string
	BaseURL string
	APIKey  string
	Models  []ModelConfig
}

// ModelConfig is one model offered by a provider.
type ModelConfig struct {
	ID      string
	Name    string
	Enabled bool
}

// ModelInfo describes a model discovered from a provider's listing API.
type ModelInfo struct {
	ID       string
	Name     string
	Provider string
}
