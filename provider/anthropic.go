package provider

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	"seekchat/mcp"
	"seekchat/model"
)

const (
	anthropicMessagesEndpoint = "/v1/messages"
	anthropicVersion          = "2023-06-01"
)

// AnthropicAdapter talks to the Anthropic Messages API.
type AnthropicAdapter struct {
	opts options
}

// NewAnthropicAdapter creates the Anthropic adapter.
func NewAnthropicAdapter(opts ...Option) *AnthropicAdapter {
	return &AnthropicAdapter{opts: newOptions(opts)}
}

type anthropicRequest struct {
	Model       string                     `json:"model"`
	Messages    []anthropicMessage         `json:"messages"`
	System      string                     `json:"system,omitempty"`
	Temperature float64                    `json:"temperature"`
	MaxTokens   int                        `json:"max_tokens"`
	Stream      bool                       `json:"stream"`
	Tools       []anthropic.ToolUnionParam `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Send implements model.Provider.
func (a *AnthropicAdapter) Send(ctx context.Context, req model.Request) (*model.Completion, error) {
	if len(req.Messages) == 0 {
		return nil, model.ErrNoMessages
	}
	name := providerName(req.Provider)

	messages, system := toAnthropicMessages(req.Messages)
	body := anthropicRequest{
		Model:       req.Model.ID,
		Messages:    messages,
		System:      system,
		Temperature: req.EffectiveTemperature(),
		MaxTokens:   req.MaxTokens,
		Stream:      req.OnProgress != nil,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = DefaultMaxTokens
	}
	if len(req.Tools) > 0 {
		body.Tools = mcp.FormatToolsForAnthropic(req.Tools)
	}

	a.opts.logger.Debug("sending messages request",
		"provider", name, "model", req.Model.ID, "messages", len(messages), "tools", len(body.Tools), "stream", body.Stream)

	headers := map[string]string{
		"Authorization":     bearer(req.Provider.APIKey),
		"x-api-key":         req.Provider.APIKey,
		"anthropic-version": anthropicVersion,
	}
	resp, err := postJSON(ctx, a.opts.client, name, joinURL(req.Provider.BaseURL, anthropicMessagesEndpoint), headers, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var state StreamState
	if body.Stream {
		state, err = foldStream(ctx, a.opts, name, resp.Body, decodeAnthropicEvent, ReduceAnthropicEvent, req.OnProgress)
	} else {
		state, err = readAnthropicResponse(ctx, name, resp.Body)
	}
	if err != nil {
		return nil, err
	}
	return complete(req, state), nil
}

func readAnthropicResponse(ctx context.Context, name string, r io.Reader) (StreamState, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return StreamState{}, requestError(ctx, name, err)
	}
	if !gjson.ValidBytes(data) {
		return StreamState{}, &model.TransportError{Provider: name, Message: "invalid response body"}
	}

	var state StreamState
	for i, block := range gjson.GetBytes(data, "content").Array() {
		switch block.Get("type").String() {
		case "text":
			state.Content += block.Get("text").String()
		case "thinking":
			state.Reasoning += block.Get("thinking").String()
		case "tool_use":
			state.ToolCalls = append(state.ToolCalls, model.ToolCall{
				Index: i,
				ID:    block.Get("id").String(),
				Type:  "function",
				Function: model.ToolCallFunction{
					Name:      block.Get("name").String(),
					Arguments: block.Get("input").Raw,
				},
			})
		}
	}
	return state, nil
}

// toAnthropicMessages maps the conversation onto user and assistant turns.
// System text moves to the system field. Tool requests and results become
// text because this adapter sends plain string content; consecutive turns
// with the same role are merged.
func toAnthropicMessages(messages []model.Message) ([]anthropicMessage, string) {
	var (
		out    []anthropicMessage
		system []string
	)
	for _, m := range messages {
		role := model.RoleAssistant
		content := m.Content
		switch m.Role {
		case model.RoleSystem:
			system = append(system, m.Content)
			continue
		case model.RoleUser:
			role = model.RoleUser
		case model.RoleTool:
			role = model.RoleUser
			content = fmt.Sprintf("Tool result (%s):\n%s", m.ToolCallID, m.Content)
		}
		if len(m.ToolCalls) > 0 {
			var calls []string
			for _, tc := range m.ToolCalls {
				calls = append(calls, fmt.Sprintf("Called tool %s (%s) with arguments %s", tc.Function.Name, tc.ID, tc.Function.Arguments))
			}
			content = strings.TrimSpace(content + "\n" + strings.Join(calls, "\n"))
		}
		if content == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + content
			continue
		}
		out = append(out, anthropicMessage{Role: role, Content: content})
	}
	return out, strings.Join(system, "\n\n")
}
