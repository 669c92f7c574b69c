package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"google.golang.org/genai"

	"seekchat/model"
)

func openAIChunkOf(t *testing.T, raw string) openAIChunk {
	t.Helper()
	chunk, err := decodeOpenAIChunk([]byte(raw))
	require.NoError(t, err)
	return chunk
}

func foldOpenAI(t *testing.T, records ...string) StreamState {
	t.Helper()
	var s StreamState
	for _, r := range records {
		next, _, err := ReduceOpenAIChunk(s, openAIChunkOf(t, r))
		require.NoError(t, err)
		s = next
	}
	return s
}

func TestReduceOpenAIChunkConcatenatesArguments(t *testing.T) {
	s := foldOpenAI(t,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"x\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"1}"}}]}}]}`,
	)
	require.Len(t, s.ToolCalls, 1)
	assert.Equal(t, `{"x":1}`, s.ToolCalls[0].Function.Arguments)
	assert.Equal(t, "call_1", s.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", s.ToolCalls[0].Function.Name)
}

func TestReduceOpenAIChunkText(t *testing.T) {
	s := foldOpenAI(t,
		`{"choices":[{"delta":{"reasoning_content":"thinking..."}}]}`,
		`{"choices":[{"delta":{"content":"Hi"}}]}`,
		`{"choices":[{"delta":{"content":" there"}}]}`,
		`{"choices":[{"delta":{}, "finish_reason":"stop"}]}`,
	)
	assert.Equal(t, "Hi there", s.Content)
	assert.Equal(t, "thinking...", s.Reasoning)
	assert.Empty(t, s.ToolCalls)
}

func TestReduceOpenAIChunkIsPure(t *testing.T) {
	first := foldOpenAI(t, `{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"a","arguments":"{"}}]}}]}`)
	second, updated, err := ReduceOpenAIChunk(first, openAIChunkOf(t,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"}"}},{"index":1,"function":{"name":"b"}}]}}]}`))
	require.NoError(t, err)
	assert.True(t, updated)

	assert.Len(t, first.ToolCalls, 1)
	assert.Equal(t, "{", first.ToolCalls[0].Function.Arguments, "earlier state is untouched")
	require.Len(t, second.ToolCalls, 2)
	assert.Equal(t, "{}", second.ToolCalls[0].Function.Arguments)
	assert.Equal(t, "b", second.ToolCalls[1].Function.Name)
}

func TestReduceOpenAIChunkStripsMarkers(t *testing.T) {
	s := foldOpenAI(t,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"f","arguments":"<|tool_call|>{\"a\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"1}"}}]}}]}`,
	)
	assert.Equal(t, `{"a":1}`, s.ToolCalls[0].Function.Arguments)

	s = foldOpenAI(t,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"f","arguments":"{\"html\":\""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"<toolbar>x</toolbar>\"}"}}]}}]}`,
	)
	assert.Equal(t, `{"html":"<toolbar>x</toolbar>"}`, s.ToolCalls[0].Function.Arguments)
}

func TestReduceOpenAIChunkError(t *testing.T) {
	_, _, err := ReduceOpenAIChunk(StreamState{}, openAIChunkOf(t, `{"error":{"message":"rate limited"}}`))
	require.Error(t, err)
	assert.Equal(t, "rate limited", err.Error())
}

func TestMergeName(t *testing.T) {
	tests := []struct {
		current, fragment, want string
	}{
		{"", "get", "get"},
		{"get", "get_weather", "get_weather"},
		{"get", "_weather", "get_weather"},
		{"get_weather", "", "get_weather"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mergeName(tt.current, tt.fragment), "%q + %q", tt.current, tt.fragment)
	}
}

func TestFinishAssignsIDsAndOrders(t *testing.T) {
	s := StreamState{ToolCalls: []model.ToolCall{
		{Index: 1, Function: model.ToolCallFunction{Name: "second"}},
		{Index: 0, ID: "call_a", Type: "function", Function: model.ToolCallFunction{Name: "first"}},
	}}
	c := s.Finish()
	require.Len(t, c.ToolCalls, 2)
	assert.Equal(t, "first", c.ToolCalls[0].Function.Name)
	assert.Equal(t, "call_a", c.ToolCalls[0].ID)
	assert.True(t, strings.HasPrefix(c.ToolCalls[1].ID, "call_"))
	assert.Equal(t, "function", c.ToolCalls[1].Type)
	assert.Empty(t, s.ToolCalls[0].ID, "finish does not modify the state")
}

func anthropicEvent(t *testing.T, raw string) gjson.Result {
	t.Helper()
	ev, err := decodeAnthropicEvent([]byte(raw))
	require.NoError(t, err)
	return ev
}

func TestReduceAnthropicEvent(t *testing.T) {
	events := []string{
		`{"type":"message_start","message":{"id":"msg_1"}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"Let me check."}}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Checking"}}`,
		`{"type":"content_block_start","index":2,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{}}}`,
		`{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`,
		`{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"\"Paris\"}"}}`,
		`{"type":"content_block_stop","index":2}`,
		`{"type":"message_stop"}`,
	}
	var s StreamState
	for _, raw := range events {
		next, _, err := ReduceAnthropicEvent(s, anthropicEvent(t, raw))
		require.NoError(t, err)
		s = next
	}
	assert.Equal(t, "Checking", s.Content)
	assert.Equal(t, "Let me check.", s.Reasoning)
	require.Len(t, s.ToolCalls, 1)
	assert.Equal(t, "toolu_1", s.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", s.ToolCalls[0].Function.Name)
	assert.Equal(t, `{"city":"Paris"}`, s.ToolCalls[0].Function.Arguments)
}

func TestReduceAnthropicToolCallDelta(t *testing.T) {
	events := []string{
		`{"type":"tool_call_delta","tool_call_id":"t1","delta":{"name":"search","input":"{\"q\":"}}`,
		`{"type":"tool_call_delta","tool_call_id":"t1","delta":{"input":"\"go\"}"}}`,
		`{"type":"tool_call_delta","tool_call_id":"t2","delta":{"name":"calc","input":{"expression":"1+1"}}}`,
	}
	var s StreamState
	for _, raw := range events {
		next, _, err := ReduceAnthropicEvent(s, anthropicEvent(t, raw))
		require.NoError(t, err)
		s = next
	}
	require.Len(t, s.ToolCalls, 2)
	assert.Equal(t, `{"q":"go"}`, s.ToolCalls[0].Function.Arguments)
	assert.Equal(t, "calc", s.ToolCalls[1].Function.Name)
	assert.JSONEq(t, `{"expression":"1+1"}`, s.ToolCalls[1].Function.Arguments)
}

func TestReduceAnthropicErrorEvent(t *testing.T) {
	_, _, err := ReduceAnthropicEvent(StreamState{}, anthropicEvent(t,
		`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	require.Error(t, err)
	assert.Equal(t, "Overloaded", err.Error())

	_, err = decodeAnthropicEvent([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestReduceGeminiChunk(t *testing.T) {
	var s StreamState
	for _, raw := range []string{
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"pondering","thought":true}]}}]}`,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"Bon"},{"text":"jour"}]}}]}`,
		`{"candidates":[]}`,
	} {
		chunk, err := decodeGeminiChunk([]byte(raw))
		require.NoError(t, err)
		next, _, err := ReduceGeminiChunk(s, chunk)
		require.NoError(t, err)
		s = next
	}
	assert.Equal(t, "Bonjour", s.Content)
	assert.Equal(t, "pondering", s.Reasoning)

	next, updated, err := ReduceGeminiChunk(s, &genai.GenerateContentResponse{})
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Equal(t, s.Content, next.Content)
}

func TestReduceOllamaResponse(t *testing.T) {
	var s StreamState
	s, updated, err := ReduceOllamaResponse(s, api.ChatResponse{Message: api.Message{Thinking: "hmm", Content: "Sure"}})
	require.NoError(t, err)
	assert.True(t, updated)

	s, _, err = ReduceOllamaResponse(s, api.ChatResponse{Message: api.Message{ToolCalls: []api.ToolCall{
		{Function: api.ToolCallFunction{Name: "get_weather", Arguments: api.ToolCallFunctionArguments{"city": "Paris"}}},
		{Function: api.ToolCallFunction{Name: "calculate", Arguments: api.ToolCallFunctionArguments{"expression": "2*3"}}},
	}}})
	require.NoError(t, err)

	c := s.Finish()
	assert.Equal(t, "Sure", c.Content)
	assert.Equal(t, "hmm", c.ReasoningContent)
	require.Len(t, c.ToolCalls, 2)
	assert.Equal(t, 1, c.ToolCalls[1].Index)
	assert.JSONEq(t, `{"city":"Paris"}`, c.ToolCalls[0].Function.Arguments)
	assert.NotEmpty(t, c.ToolCalls[0].ID)
}

func TestReadSSE(t *testing.T) {
	input := "event: ping\n\ndata: one\n\n: comment\ndata:two\n\ndata: [DONE]\n\ndata: after\n\n"
	var got []string
	err := readSSE(context.Background(), strings.NewReader(input), func(data []byte) error {
		got = append(got, string(data))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestFoldStreamSkipsMalformedRecords(t *testing.T) {
	body := strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n" +
		"data: {not json\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n")
	var progress []string
	s, err := foldStream(context.Background(), newOptions(nil), "test", body,
		decodeOpenAIChunk, ReduceOpenAIChunk, func(c model.Completion) { progress = append(progress, c.Content) })
	require.NoError(t, err)
	assert.Equal(t, "ab", s.Content)
	assert.Equal(t, []string{"a", "ab"}, progress)
}
