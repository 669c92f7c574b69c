package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seekchat/model"
)

var (
	testProvider = model.ProviderConfig{ID: "openai", Name: "OpenAI", BaseURL: "https://api.openai.com/v1", APIKey: "sk-test"}
	testModel    = model.ModelConfig{ID: "gpt-4o", Name: "GPT-4o", Enabled: true}
)

func newTestService(p *scriptedProvider, catalog *fakeCatalog) (*Service, *memoryStore) {
	store := newMemoryStore()
	return NewService(store, catalog, NewOrchestrator(p, catalog)), store
}

func TestPrepare(t *testing.T) {
	s, store := newTestService(&scriptedProvider{}, &fakeCatalog{})

	turn, err := s.Prepare(context.Background(), 1, "hello", testProvider, testModel)
	require.NoError(t, err)

	user := store.message(turn.User.ID)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Equal(t, "hello", user.Blocks().Text())

	assistant := store.message(turn.Assistant.ID)
	assert.Equal(t, model.StatusPending, assistant.Status)
	assert.Equal(t, "gpt-4o", assistant.ModelID)
	blocks := assistant.Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, model.BlockContent, blocks[0].Type)
	assert.Empty(t, blocks[0].Text)
	assert.Equal(t, model.BlockReasoning, blocks[1].Type)
	assert.Equal(t, model.StatusPending, blocks[1].Status)

	_, err = s.Prepare(context.Background(), 1, "hello", model.ProviderConfig{}, testModel)
	assert.Error(t, err)
}

func TestSendPlainReply(t *testing.T) {
	p := &scriptedProvider{steps: []func(context.Context, model.Request) (*model.Completion, error){
		stream(nil, "Hi", " there"),
	}}
	s, store := newTestService(p, &fakeCatalog{})
	var updates []Update

	turn, err := s.Send(context.Background(), 1, "hello", testProvider, testModel, func(u Update) {
		updates = append(updates, u)
	})
	require.NoError(t, err)

	msg := store.message(turn.Assistant.ID)
	assert.Equal(t, model.StatusSuccess, msg.Status)
	content, ok := msg.Blocks().Get(model.BlockContent)
	require.True(t, ok)
	assert.Equal(t, "Hi there", content.Text)
	assert.Equal(t, model.StatusSuccess, content.Status)
	assert.Equal(t, []model.Status{model.StatusSuccess}, store.terminalWrites(turn.Assistant.ID))

	require.Len(t, updates, 3)
	assert.Equal(t, model.StatusReceiving, updates[0].Status)
	assert.Equal(t, "Hi", updates[0].Completion.Content)
	assert.Equal(t, model.StatusSuccess, updates[2].Status)
	assert.False(t, s.Generating(turn.Assistant.ID))

	// The provider saw the user turn with the session's default temperature.
	require.Len(t, p.requests, 1)
	assert.Equal(t, []model.Message{{Role: model.RoleUser, Content: "hello"}}, p.requests[0].Messages)
	assert.Equal(t, model.DefaultTemperature, p.requests[0].EffectiveTemperature())
}

func TestSendWithToolCall(t *testing.T) {
	p := &scriptedProvider{steps: []func(context.Context, model.Request) (*model.Completion, error){
		stream([]model.ToolCall{weatherCall(`{"city":"Paris"}`)}),
		stream(nil, "It's 20°C in Paris"),
	}}
	catalog := &fakeCatalog{
		tools: []model.ToolDescriptor{weatherTool},
		call: func(string, string, map[string]any) model.ToolExecution {
			return model.ToolExecution{Success: true, Result: map[string]any{"temp": 20}}
		},
	}
	s, store := newTestService(p, catalog)

	turn, err := s.Send(context.Background(), 1, "what's the weather", testProvider, testModel, nil)
	require.NoError(t, err)

	msg := store.message(turn.Assistant.ID)
	assert.Equal(t, model.StatusSuccess, msg.Status)
	blocks := msg.Blocks()
	assert.Equal(t, "It's 20°C in Paris", blocks.Text())
	tools, ok := blocks.Get(model.BlockToolCalls)
	require.True(t, ok)
	require.Len(t, tools.ToolCalls, 1)
	assert.Equal(t, model.ToolCallSuccess, tools.ToolCalls[0].Status)
	assert.Equal(t, "get_weather", tools.ToolCalls[0].ToolName)

	require.Len(t, p.requests, 2)
	assert.Len(t, p.requests[0].Tools, 1)
	assert.Empty(t, p.requests[1].Tools)
	assert.Equal(t, `{"temp":20}`, p.requests[1].Messages[2].Content)
}

func TestSendWithFailingTool(t *testing.T) {
	p := &scriptedProvider{steps: []func(context.Context, model.Request) (*model.Completion, error){
		stream([]model.ToolCall{weatherCall(`{"city":"Paris"}`)}),
		stream(nil, "Sorry, I could not reach the weather service."),
	}}
	catalog := &fakeCatalog{
		tools: []model.ToolDescriptor{weatherTool},
		call: func(string, string, map[string]any) model.ToolExecution {
			return model.ToolExecution{Success: false, Message: "server unreachable"}
		},
	}
	s, store := newTestService(p, catalog)

	turn, err := s.Send(context.Background(), 1, "what's the weather", testProvider, testModel, nil)
	require.NoError(t, err)

	require.Len(t, p.requests, 2, "resend still happens")
	assert.Equal(t, `{"error":"server unreachable"}`, p.requests[1].Messages[2].Content)

	msg := store.message(turn.Assistant.ID)
	assert.Equal(t, model.StatusSuccess, msg.Status)
	tools, ok := msg.Blocks().Get(model.BlockToolCalls)
	require.True(t, ok)
	assert.Equal(t, model.ToolCallError, tools.ToolCalls[0].Status)
}

func TestStopMidStream(t *testing.T) {
	p := &scriptedProvider{steps: []func(context.Context, model.Request) (*model.Completion, error){
		func(ctx context.Context, req model.Request) (*model.Completion, error) {
			req.OnProgress(model.Completion{Content: "Once upon"})
			<-ctx.Done()
			return nil, model.Cancelled(ctx.Err())
		},
	}}
	s, store := newTestService(p, &fakeCatalog{})

	turn, err := s.Prepare(context.Background(), 1, "tell me a story", testProvider, testModel)
	require.NoError(t, err)

	var final []Update
	err = s.Run(context.Background(), turn, func(u Update) {
		if u.Status == model.StatusReceiving {
			assert.True(t, s.Stop(turn.Assistant.ID))
			assert.True(t, s.Stop(turn.Assistant.ID), "stop is idempotent while running")
			return
		}
		final = append(final, u)
	})
	require.Error(t, err)
	assert.True(t, model.IsCancelled(err))

	require.Len(t, final, 1)
	assert.Equal(t, model.StatusError, final[0].Status)
	assert.True(t, model.IsCancelled(final[0].Err))

	msg := store.message(turn.Assistant.ID)
	assert.Equal(t, model.StatusError, msg.Status)
	assert.Equal(t, TerminatedByUser, msg.Blocks().Text())
	assert.Equal(t, []model.Status{model.StatusError}, store.terminalWrites(turn.Assistant.ID))

	assert.False(t, s.Stop(turn.Assistant.ID), "settled generation cannot be stopped")
}

func TestSendProviderError(t *testing.T) {
	p := &scriptedProvider{steps: []func(context.Context, model.Request) (*model.Completion, error){
		func(context.Context, model.Request) (*model.Completion, error) {
			return nil, &model.TransportError{Provider: "OpenAI", StatusCode: 500, Message: "upstream exploded"}
		},
	}}
	s, store := newTestService(p, &fakeCatalog{})

	turn, err := s.Send(context.Background(), 1, "hello", testProvider, testModel, nil)
	require.Error(t, err)
	assert.False(t, model.IsCancelled(err))

	msg := store.message(turn.Assistant.ID)
	assert.Equal(t, model.StatusError, msg.Status)
	assert.Contains(t, msg.Blocks().Text(), "upstream exploded")
	assert.Equal(t, []model.Status{model.StatusError}, store.terminalWrites(turn.Assistant.ID))
}

func TestSendHonoursSessionSettings(t *testing.T) {
	p := &scriptedProvider{steps: []func(context.Context, model.Request) (*model.Completion, error){
		stream(nil, "second answer"),
	}}
	s, store := newTestService(p, &fakeCatalog{})
	store.sessions[1] = model.Session{ID: 1, Metadata: `{"temperature":0.2,"contextLength":1}`}

	ctx := context.Background()
	for _, m := range []struct {
		role, text string
	}{{model.RoleUser, "first"}, {model.RoleAssistant, "first answer"}} {
		content, err := model.ContentBlocks{model.NewBlock(model.BlockContent, m.text, model.StatusSuccess)}.Encode()
		require.NoError(t, err)
		_, err = store.AddMessage(ctx, model.StoredMessage{SessionID: 1, Role: m.role, Content: content, Status: model.StatusSuccess})
		require.NoError(t, err)
	}

	_, err := s.Send(ctx, 1, "second", testProvider, testModel, nil)
	require.NoError(t, err)

	require.Len(t, p.requests, 1)
	assert.Equal(t, []model.Message{{Role: model.RoleUser, Content: "second"}}, p.requests[0].Messages)
	assert.InDelta(t, 0.2, p.requests[0].EffectiveTemperature(), 1e-9)
}
