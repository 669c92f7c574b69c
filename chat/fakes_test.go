package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"seekchat/model"
)

// scriptedProvider answers each Send with the next step of a script.
type scriptedProvider struct {
	mu       sync.Mutex
	steps    []func(ctx context.Context, req model.Request) (*model.Completion, error)
	requests []model.Request
}

func (p *scriptedProvider) Send(ctx context.Context, req model.Request) (*model.Completion, error) {
	p.mu.Lock()
	n := len(p.requests)
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if n >= len(p.steps) {
		return nil, fmt.Errorf("unexpected call %d", n+1)
	}
	return p.steps[n](ctx, req)
}

func (p *scriptedProvider) For(string) model.Provider { return p }

// stream emits each delta as progress and completes with their
// concatenation plus calls.
func stream(calls []model.ToolCall, deltas ...string) func(context.Context, model.Request) (*model.Completion, error) {
	return func(ctx context.Context, req model.Request) (*model.Completion, error) {
		var c model.Completion
		for _, d := range deltas {
			c.Content += d
			if req.OnProgress != nil {
				req.OnProgress(c)
			}
		}
		c.ToolCalls = calls
		return &c, nil
	}
}

type fakeCatalog struct {
	tools []model.ToolDescriptor
	call  func(serverID, toolID string, args map[string]any) model.ToolExecution
	calls []string
}

func (c *fakeCatalog) ListActiveTools(ctx context.Context) ([]model.ToolDescriptor, error) {
	return c.tools, nil
}

func (c *fakeCatalog) CallTool(ctx context.Context, serverID, toolID string, args map[string]any) model.ToolExecution {
	c.calls = append(c.calls, serverID+"/"+toolID)
	if c.call == nil {
		return model.ToolExecution{Success: false, Message: "no handler"}
	}
	return c.call(serverID, toolID, args)
}

var weatherTool = model.ToolDescriptor{
	ID:         "get_weather",
	Name:       "get_weather",
	ServerID:   "weather",
	ServerName: "Weather",
	Parameters: model.ToolSchema{Type: "object", Properties: map[string]any{"city": map[string]any{"type": "string"}}},
}

func weatherCall(args string) model.ToolCall {
	return model.ToolCall{ID: "call_1", Type: "function", Function: model.ToolCallFunction{Name: "get_weather", Arguments: args}}
}

// memoryStore is an in-memory Store that records terminal writes.
type memoryStore struct {
	mu           sync.Mutex
	sessions     map[int64]model.Session
	messages     map[int64]model.StoredMessage
	nextID       int64
	statusWrites map[int64][]model.Status
	clock        time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sessions:     map[int64]model.Session{1: {ID: 1, Name: "test"}},
		messages:     make(map[int64]model.StoredMessage),
		statusWrites: make(map[int64][]model.Status),
		clock:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memoryStore) GetSession(ctx context.Context, id int64) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, fmt.Errorf("session %d not found", id)
	}
	return sess, nil
}

func (s *memoryStore) GetMessages(ctx context.Context, sessionID int64) ([]model.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StoredMessage
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) AddMessage(ctx context.Context, msg model.StoredMessage) (model.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.clock = s.clock.Add(time.Second)
	msg.ID = s.nextID
	msg.CreatedAt = s.clock
	msg.UpdatedAt = s.clock
	s.messages[msg.ID] = msg
	return msg, nil
}

func (s *memoryStore) UpdateMessageStatus(ctx context.Context, id int64, status model.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return fmt.Errorf("message %d not found", id)
	}
	m.Status = status
	s.messages[id] = m
	s.statusWrites[id] = append(s.statusWrites[id], status)
	return nil
}

func (s *memoryStore) UpdateMessageContent(ctx context.Context, id int64, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return fmt.Errorf("message %d not found", id)
	}
	m.Content = content
	s.messages[id] = m
	return nil
}

func (s *memoryStore) message(id int64) model.StoredMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id]
}

func (s *memoryStore) terminalWrites(id int64) []model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Status
	for _, st := range s.statusWrites[id] {
		if st.Terminal() {
			out = append(out, st)
		}
	}
	return out
}
