package provider

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ollama/ollama/api"

	"seekchat/mcp"
	"seekchat/model"
	"seekchat/ollama"
)

// OllamaAdapter talks to a local Ollama server through its native chat API.
// Tools are only offered to models known to support them.
type OllamaAdapter struct {
	opts options
}

// NewOllamaAdapter creates the Ollama adapter.
func NewOllamaAdapter(opts ...Option) *OllamaAdapter {
	return &OllamaAdapter{opts: newOptions(opts)}
}

// Send implements model.Provider.
func (a *OllamaAdapter) Send(ctx context.Context, req model.Request) (*model.Completion, error) {
	if len(req.Messages) == 0 {
		return nil, model.ErrNoMessages
	}
	name := providerName(req.Provider)

	client, err := ollama.NewClient(req.Provider.BaseURL, a.opts.client)
	if err != nil {
		return nil, &model.TransportError{Provider: name, Message: "invalid base url", Err: err}
	}

	stream := req.OnProgress != nil
	chatReq := &api.ChatRequest{
		Model:    req.Model.ID,
		Messages: toOllamaMessages(req.Messages),
		Stream:   &stream,
		Options:  map[string]any{"temperature": req.EffectiveTemperature()},
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		if ollama.ModelSupportsToolCalling(req.Model.ID) {
			chatReq.Tools = mcp.FormatToolsForOllama(req.Tools)
		} else {
			a.opts.logger.Debug("model does not support tool calling, sending without tools", "model", req.Model.ID)
		}
	}

	a.opts.logger.Debug("sending ollama chat",
		"provider", name, "model", req.Model.ID, "messages", len(chatReq.Messages), "tools", len(chatReq.Tools), "stream", stream)

	var state StreamState
	err = client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		next, updated, err := ReduceOllamaResponse(state, resp)
		if err != nil {
			return err
		}
		state = next
		if updated && req.OnProgress != nil {
			req.OnProgress(state.Snapshot())
		}
		return nil
	})
	if err != nil {
		return nil, ollamaError(ctx, name, err)
	}
	return complete(req, state), nil
}

// ReduceOllamaResponse folds one chat response record into s. Content and
// thinking are appended; each tool call arrives complete and is added as a
// new call with its arguments encoded as JSON.
func ReduceOllamaResponse(s StreamState, resp api.ChatResponse) (StreamState, bool, error) {
	updated := false
	if resp.Message.Content != "" {
		s.Content += resp.Message.Content
		updated = true
	}
	if resp.Message.Thinking != "" {
		s.Reasoning += resp.Message.Thinking
		updated = true
	}
	if len(resp.Message.ToolCalls) == 0 {
		return s, updated, nil
	}

	s = s.cloneCalls()
	for _, tc := range resp.Message.ToolCalls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			return s, updated, err
		}
		s.ToolCalls = append(s.ToolCalls, model.ToolCall{
			Index: len(s.ToolCalls),
			Type:  "function",
			Function: model.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: string(args),
			},
		})
	}
	return s, true, nil
}

func toOllamaMessages(messages []model.Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		msg := api.Message{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			var args api.ToolCallFunctionArguments
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				continue
			}
			msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
				Function: api.ToolCallFunction{Name: tc.Function.Name, Arguments: args},
			})
		}
		out = append(out, msg)
	}
	return out
}

func ollamaError(ctx context.Context, name string, err error) error {
	if ctx.Err() != nil {
		return model.Cancelled(ctx.Err())
	}
	var se api.StatusError
	if errors.As(err, &se) {
		msg := se.ErrorMessage
		if msg == "" {
			msg = se.Status
		}
		return &model.TransportError{Provider: name, StatusCode: se.StatusCode, Message: msg}
	}
	return &model.TransportError{Provider: name, Message: "request failed", Err: err}
}
