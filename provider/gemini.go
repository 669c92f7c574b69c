package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"google.golang.org/genai"

	"seekchat/model"
)

// GeminiAdapter talks to the Gemini generateContent REST API. Tools are
// not sent to Gemini.
type GeminiAdapter struct {
	opts options
}

// NewGeminiAdapter creates the Gemini adapter.
func NewGeminiAdapter(opts ...Option) *GeminiAdapter {
	return &GeminiAdapter{opts: newOptions(opts)}
}

type geminiRequest struct {
	Contents          []*genai.Content        `json:"contents"`
	SystemInstruction *genai.Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *genai.GenerationConfig `json:"generationConfig"`
}

// Send implements model.Provider.
func (a *GeminiAdapter) Send(ctx context.Context, req model.Request) (*model.Completion, error) {
	if len(req.Messages) == 0 {
		return nil, model.ErrNoMessages
	}
	name := providerName(req.Provider)
	stream := req.OnProgress != nil

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	contents, system := toGeminiContents(req.Messages)
	body := geminiRequest{
		Contents:          contents,
		SystemInstruction: system,
		GenerationConfig: &genai.GenerationConfig{
			Temperature:     genai.Ptr(float32(req.EffectiveTemperature())),
			MaxOutputTokens: int32(maxTokens),
		},
	}
	if len(req.Tools) > 0 {
		a.opts.logger.Debug("gemini adapter ignores tools", "tools", len(req.Tools))
	}

	resp, err := postJSON(ctx, a.opts.client, name, geminiURL(req.Provider, req.Model.ID, stream), nil, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var state StreamState
	if stream {
		state, err = foldStream(ctx, a.opts, name, resp.Body, decodeGeminiChunk, ReduceGeminiChunk, req.OnProgress)
	} else {
		state, err = readGeminiResponse(ctx, name, resp.Body)
	}
	if err != nil {
		return nil, err
	}
	return complete(req, state), nil
}

// geminiURL builds the generateContent URL. The API key travels as a query
// parameter; streaming uses the SSE variant of the method.
func geminiURL(p model.ProviderConfig, modelID string, stream bool) string {
	method := "generateContent"
	query := url.Values{}
	if stream {
		method = "streamGenerateContent"
		query.Set("alt", "sse")
	}
	query.Set("key", p.APIKey)
	endpoint := fmt.Sprintf("/models/%s:%s", url.PathEscape(strings.TrimPrefix(modelID, "models/")), method)
	return joinURL(p.BaseURL, endpoint) + "?" + query.Encode()
}

func readGeminiResponse(ctx context.Context, name string, r io.Reader) (StreamState, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return StreamState{}, requestError(ctx, name, err)
	}
	var resp genai.GenerateContentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return StreamState{}, &model.TransportError{Provider: name, Message: "invalid response body", Err: err}
	}
	state, _, err := ReduceGeminiChunk(StreamState{}, &resp)
	return state, err
}

func toGeminiContents(messages []model.Message) ([]*genai.Content, *genai.Content) {
	var (
		contents []*genai.Content
		system   *genai.Content
	)
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: m.Content})
		case model.RoleUser:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	return contents, system
}
