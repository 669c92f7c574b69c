package provider

import (
	"context"
	"encoding/json"
	"io"

	"github.com/openai/openai-go/v3"

	"seekchat/mcp"
	"seekchat/model"
)

const openAIChatEndpoint = "/chat/completions"

// OpenAICompatAdapter talks to any OpenAI-compatible chat completions
// endpoint. It is the fallback for unrecognized provider ids.
type OpenAICompatAdapter struct {
	opts options
}

// NewOpenAICompatAdapter creates the OpenAI-compatible adapter.
func NewOpenAICompatAdapter(opts ...Option) *OpenAICompatAdapter {
	return &OpenAICompatAdapter{opts: newOptions(opts)}
}

type openAIRequest struct {
	Model       string                                `json:"model"`
	Messages    []openAIMessage                       `json:"messages"`
	Temperature float64                               `json:"temperature"`
	Stream      bool                                  `json:"stream"`
	MaxTokens   int                                   `json:"max_tokens,omitempty"`
	Tools       []openai.ChatCompletionToolUnionParam `json:"tools,omitempty"`
	ToolChoice  string                                `json:"tool_choice,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Function model.ToolCallFunction `json:"function"`
}

// Send implements model.Provider.
func (a *OpenAICompatAdapter) Send(ctx context.Context, req model.Request) (*model.Completion, error) {
	if len(req.Messages) == 0 {
		return nil, model.ErrNoMessages
	}
	name := providerName(req.Provider)

	body := openAIRequest{
		Model:       req.Model.ID,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: req.EffectiveTemperature(),
		Stream:      req.OnProgress != nil,
		MaxTokens:   req.MaxTokens,
	}
	if len(req.Tools) > 0 {
		body.Tools = mcp.FormatToolsForOpenAI(req.Tools)
		body.ToolChoice = "auto"
	}

	a.opts.logger.Debug("sending chat completion",
		"provider", name, "model", req.Model.ID, "messages", len(body.Messages), "tools", len(body.Tools), "stream", body.Stream)

	resp, err := postJSON(ctx, a.opts.client, name, joinURL(req.Provider.BaseURL, openAIChatEndpoint),
		map[string]string{"Authorization": bearer(req.Provider.APIKey)}, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var state StreamState
	if body.Stream {
		state, err = foldStream(ctx, a.opts, name, resp.Body, decodeOpenAIChunk, ReduceOpenAIChunk, req.OnProgress)
	} else {
		state, err = readOpenAIResponse(ctx, name, resp.Body)
	}
	if err != nil {
		return nil, err
	}
	return complete(req, state), nil
}

func readOpenAIResponse(ctx context.Context, name string, r io.Reader) (StreamState, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return StreamState{}, requestError(ctx, name, err)
	}
	var resp openAIResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return StreamState{}, &model.TransportError{Provider: name, Message: "invalid response body", Err: err}
	}
	if len(resp.Choices) == 0 {
		return StreamState{}, nil
	}
	state, _, err := reduceOpenAIDelta(StreamState{}, resp.Choices[0].Message)
	return state, err
}

func toOpenAIMessages(messages []model.Message) []openAIMessage {
	out := make([]openAIMessage, len(messages))
	for i, m := range messages {
		out[i] = openAIMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			typ := tc.Type
			if typ == "" {
				typ = "function"
			}
			out[i].ToolCalls = append(out[i].ToolCalls, openAIToolCall{ID: tc.ID, Type: typ, Function: tc.Function})
		}
	}
	return out
}

// complete finalizes the accumulated state and fires OnComplete once.
func complete(req model.Request, state StreamState) *model.Completion {
	c := state.Finish()
	if req.OnComplete != nil {
		req.OnComplete(c.Clone())
	}
	return &c
}

func providerName(p model.ProviderConfig) string {
	if p.Name != "" {
		return p.Name
	}
	if p.ID != "" {
		return p.ID
	}
	return "provider"
}

func bearer(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	return "Bearer " + apiKey
}
