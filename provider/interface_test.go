package provider_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"seekchat/model"
	"seekchat/provider"
	"seekchat/provider/testutil"
)

// contractCase pairs an adapter with a server speaking its wire format.
type contractCase struct {
	name       string
	providerID string
	provider   model.Provider
	stream     http.HandlerFunc
}

// TestProviderContract checks the behaviour every adapter shares:
// progress only when streaming, OnComplete exactly once and after the
// last progress event.
func TestProviderContract(t *testing.T) {
	tests := []contractCase{
		{
			name:       "OpenAI",
			providerID: "openai",
			provider:   provider.NewOpenAICompatAdapter(),
			stream: testutil.SSE(
				`{"choices":[{"delta":{"content":"Hello "}}]}`,
				`{"choices":[{"delta":{"content":"world"}}]}`,
				`[DONE]`,
			),
		},
		{
			name:       "Anthropic",
			providerID: "anthropic",
			provider:   provider.NewAnthropicAdapter(),
			stream: testutil.SSE(
				`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello "}}`,
				`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"world"}}`,
				`{"type":"message_stop"}`,
			),
		},
		{
			name:       "Gemini",
			providerID: "gemini",
			provider:   provider.NewGeminiAdapter(),
			stream: testutil.SSE(
				`{"candidates":[{"content":{"parts":[{"text":"Hello "}]}}]}`,
				`{"candidates":[{"content":{"parts":[{"text":"world"}]}}]}`,
			),
		},
		{
			name:       "Ollama",
			providerID: "ollama",
			provider:   provider.NewOllamaAdapter(),
			stream: testutil.NDJSON(
				`{"message":{"role":"assistant","content":"Hello "},"done":false}`,
				`{"message":{"role":"assistant","content":"world"},"done":true}`,
			),
		},
		{
			name:       "Mock",
			providerID: "mock",
			provider:   testutil.NewMockProvider("Hello world"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			baseURL := ""
			if tt.stream != nil {
				baseURL = testutil.NewServer(t, tt.stream).URL
			}
			testProviderStreaming(t, tt, baseURL)
		})
	}
}

func testProviderStreaming(t *testing.T, tt contractCase, baseURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		events    []string
		completed int
	)
	_, err := tt.provider.Send(ctx, model.Request{
		Messages: testutil.SingleUserMessage("Hello"),
		Provider: model.ProviderConfig{ID: tt.providerID, BaseURL: baseURL, APIKey: "k"},
		Model:    model.ModelConfig{ID: "m"},
		OnProgress: func(c model.Completion) {
			if completed > 0 {
				t.Error("progress after completion")
			}
			events = append(events, c.Content)
		},
		OnComplete: func(c model.Completion) {
			completed++
			if c.Content != "Hello world" {
				t.Errorf("OnComplete content = %q, want %q", c.Content, "Hello world")
			}
		},
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if completed != 1 {
		t.Errorf("OnComplete fired %d times, want 1", completed)
	}
	if len(events) == 0 {
		t.Fatal("no progress events received")
	}
	if last := events[len(events)-1]; last != "Hello world" {
		t.Errorf("last progress = %q, want %q", last, "Hello world")
	}
}

// TestMockProviderImplementsInterface ensures mock provider implements the interface
func TestMockProviderImplementsInterface(t *testing.T) {
	var _ model.Provider = (*testutil.MockProvider)(nil)
}
