package testutil

import (
	"context"
	"sync"

	"seekchat/model"
)

// MockProvider implements model.Provider for testing
type MockProvider struct {
	// SendFunc answers every Send. The default streams Reply word by word.
	SendFunc func(ctx context.Context, req model.Request) (*model.Completion, error)
	Reply    string

	mu       sync.Mutex
	requests []model.Request
}

// NewMockProvider creates a mock provider that always answers reply
func NewMockProvider(reply string) *MockProvider {
	mock := &MockProvider{Reply: reply}
	mock.SendFunc = mock.defaultSend
	return mock
}

func (m *MockProvider) defaultSend(ctx context.Context, req model.Request) (*model.Completion, error) {
	if len(req.Messages) == 0 {
		return nil, model.ErrNoMessages
	}
	var c model.Completion
	for _, chunk := range Chunks(m.Reply) {
		if err := ctx.Err(); err != nil {
			return nil, model.Cancelled(err)
		}
		c.Content += chunk
		if req.OnProgress != nil {
			req.OnProgress(c)
		}
	}
	if req.OnComplete != nil {
		req.OnComplete(c.Clone())
	}
	return &c, nil
}

// Send implements model.Provider.
func (m *MockProvider) Send(ctx context.Context, req model.Request) (*model.Completion, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.SendFunc(ctx, req)
}

// Requests returns every request received so far
func (m *MockProvider) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}
