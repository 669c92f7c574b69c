// Package provider implements model.Provider for each supported provider
// family.
//
// Every adapter issues exactly one HTTP call per Send and normalizes the
// provider's wire format into model.Completion. Streaming responses are read
// as "data:" records and folded through a per-family reducer
// (ReduceOpenAIChunk, ReduceAnthropicEvent, ReduceGeminiChunk); each reducer
// is a pure function of (state, chunk) so it can be tested without a server.
//
// # Families
//
//   - FamilyOpenAI: OpenAI-compatible /chat/completions. Used for openai,
//     deepseek and every provider id that is not recognized.
//   - FamilyAnthropic: /v1/messages.
//   - FamilyGemini: /models/{model}:generateContent, key passed as a query
//     parameter.
//   - FamilyOllama: the native Ollama chat API through the Ollama client.
//
// # Errors
//
// Non-2xx responses and network failures surface as *model.TransportError.
// Cancelling the context surfaces as an error matching model.ErrCancelled.
// A malformed stream record is logged and skipped.
//
// # Usage
//
//	registry := provider.NewRegistry()
//	completion, err := registry.For(cfg.ID).Send(ctx, model.Request{
//	    Messages: messages,
//	    Provider: cfg,
//	    Model:    modelCfg,
//	})
package provider

import (
	"log/slog"
	"net/http"
)

// Note: The Provider interface is defined in the model package
// (model/provider.go) to avoid import cycles. This package implements
// model.Provider.

// Family identifies a wire-format implementation.
type Family string

const (
	FamilyOpenAI    Family = "openai"
	FamilyAnthropic Family = "anthropic"
	FamilyGemini    Family = "gemini"
	FamilyOllama    Family = "ollama"
)

// DefaultMaxTokens is sent to providers that require an output cap when the
// request does not set one.
const DefaultMaxTokens = 2000

// Option configures an adapter.
type Option func(*options)

type options struct {
	client *http.Client
	logger *slog.Logger
}

// WithHTTPClient sets the HTTP client used for model calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

// WithLogger sets the logger used for stream warnings and debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		client: http.DefaultClient,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", "provider")
	return o
}
