package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusReceiving, true},
		{StatusPending, StatusSuccess, true},
		{StatusPending, StatusError, true},
		{StatusReceiving, StatusReceiving, true},
		{StatusReceiving, StatusSuccess, true},
		{StatusReceiving, StatusPending, false},
		{StatusPending, StatusPending, false},
		{StatusSuccess, StatusError, false},
		{StatusError, StatusReceiving, false},
		{StatusPending, Status("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanAdvanceTo(tt.to))
		})
	}
}

func TestContentBlocksRoundTrip(t *testing.T) {
	results := []ToolCallResult{{ID: "call_1", ToolName: "get_weather", Status: ToolCallSuccess, Result: map[string]any{"temp": float64(20)}}}
	blocks := AssistantBlocks("It's 20°C", "thinking", results, StatusSuccess)

	raw, err := blocks.Encode()
	require.NoError(t, err)

	parsed := ParseContentBlocks(raw)
	require.Len(t, parsed, 3)
	assert.Equal(t, "It's 20°C", parsed.Text())

	reasoning, ok := parsed.Get(BlockReasoning)
	require.True(t, ok)
	assert.Equal(t, "thinking", reasoning.Text)

	calls, ok := parsed.Get(BlockToolCalls)
	require.True(t, ok)
	require.Len(t, calls.ToolCalls, 1)
	assert.Equal(t, ToolCallSuccess, calls.ToolCalls[0].Status)
	assert.Equal(t, map[string]any{"temp": float64(20)}, calls.ToolCalls[0].Result)
}

func TestAssistantBlocksOmitsEmptyParts(t *testing.T) {
	blocks := AssistantBlocks("hi", "", nil, StatusReceiving)
	require.Len(t, blocks, 1)
	assert.Equal(t, BlockContent, blocks[0].Type)
	assert.Equal(t, StatusReceiving, blocks[0].Status)
}

func TestParseContentBlocksFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain text", "hello", "hello"},
		{"json object", `{"a":1}`, `{"a":1}`},
		{"json null", "null", "null"},
		{"array of numbers", "[1,2]", "[1,2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := ParseContentBlocks(tt.raw)
			require.Len(t, blocks, 1)
			assert.Equal(t, BlockContent, blocks[0].Type)
			assert.Equal(t, StatusSuccess, blocks[0].Status)
			assert.Equal(t, tt.want, blocks[0].Text)
		})
	}
}

func TestContentBlocksSetKeepsOnePerType(t *testing.T) {
	blocks := ContentBlocks{NewBlock(BlockContent, "", StatusPending), NewBlock(BlockReasoning, "", StatusPending)}
	updated := blocks.Set(NewBlock(BlockContent, "done", StatusSuccess))

	require.Len(t, updated, 2)
	assert.Equal(t, "done", updated.Text())
	assert.Equal(t, "", blocks.Text(), "original slice must not change")
}

func TestContentBlocksTextFallsBackToSuccessfulBlock(t *testing.T) {
	blocks := ContentBlocks{
		NewBlock(BlockReasoning, "pending", StatusPending),
		NewBlock(BlockReasoning, "ok", StatusSuccess),
	}
	assert.Equal(t, "ok", blocks.Text())
	assert.Equal(t, "", ContentBlocks(nil).Text())
}

func TestToolCallResultFinalizesOnce(t *testing.T) {
	r := ToolCallResult{ID: "1", ToolName: "x", Status: ToolCallRunning}
	r.Fail("boom")
	r.Succeed("late")

	assert.Equal(t, ToolCallError, r.Status)
	assert.Equal(t, "boom", r.Error)
	assert.Nil(t, r.Result)
}

func TestFindTool(t *testing.T) {
	tools := []ToolDescriptor{
		{ID: "weather__get", Name: "get_weather"},
		{ID: "get_weather", Name: "other"},
	}

	got, ok := FindTool(tools, "get_weather")
	require.True(t, ok)
	assert.Equal(t, "other", got.Name, "id match wins over name match")

	got, ok = FindTool(tools, "other")
	require.True(t, ok)
	assert.Equal(t, "get_weather", got.ID)

	_, ok = FindTool(tools, "missing")
	assert.False(t, ok)
}
