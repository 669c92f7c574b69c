package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"seekchat/conversation"
	"seekchat/model"
)

// TerminatedByUser replaces the content of a generation the user stopped.
const TerminatedByUser = "terminated by user"

// ErrBusy is returned by Run while the message already has a generation.
var ErrBusy = errors.New("message is already generating")

// Store is the persistence the service needs.
type Store interface {
	GetSession(ctx context.Context, id int64) (model.Session, error)
	GetMessages(ctx context.Context, sessionID int64) ([]model.StoredMessage, error)
	AddMessage(ctx context.Context, msg model.StoredMessage) (model.StoredMessage, error)
	UpdateMessageStatus(ctx context.Context, id int64, status model.Status) error
	UpdateMessageContent(ctx context.Context, id int64, content string) error
}

// Turn is a prepared user turn: the stored user message and the pending
// assistant message that will receive the reply.
type Turn struct {
	SessionID int64
	User      model.StoredMessage
	Assistant model.StoredMessage
	Provider  model.ProviderConfig
	Model     model.ModelConfig
}

// Update is sent to observers whenever the assistant message changes.
type Update struct {
	MessageID  int64
	Status     model.Status
	Completion model.Completion
	// Err is set on the final update of a failed or cancelled generation.
	Err error
}

// Service persists a user turn and drives its generation.
type Service struct {
	store        Store
	catalog      Catalog
	orchestrator *Orchestrator
	maxTokens    int
	logger       *slog.Logger

	mu     sync.Mutex
	active map[int64]*generation
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxTokens caps the completion length of every request.
func WithMaxTokens(n int) ServiceOption {
	return func(s *Service) { s.maxTokens = n }
}

// NewService creates a message service.
func NewService(store Store, catalog Catalog, orchestrator *Orchestrator, opts ...ServiceOption) *Service {
	s := &Service{
		store:        store,
		catalog:      catalog,
		orchestrator: orchestrator,
		logger:       slog.New(slog.DiscardHandler),
		active:       make(map[int64]*generation),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chat")
	return s
}

// generation tracks one in-flight reply. It is settled exactly once.
type generation struct {
	messageID int64
	cancel    context.CancelFunc
	status    model.Status
	settled   bool
}

// Prepare stores the user message and a pending assistant message whose
// blocks are an empty content block and a pending reasoning block.
func (s *Service) Prepare(ctx context.Context, sessionID int64, text string, p model.ProviderConfig, m model.ModelConfig) (*Turn, error) {
	if p.ID == "" || m.ID == "" {
		return nil, errors.New("no provider or model selected")
	}

	userContent, err := model.ContentBlocks{model.NewBlock(model.BlockContent, text, model.StatusSuccess)}.Encode()
	if err != nil {
		return nil, err
	}
	user, err := s.store.AddMessage(ctx, model.StoredMessage{
		SessionID:  sessionID,
		Role:       model.RoleUser,
		ProviderID: p.ID,
		ModelID:    m.ID,
		Content:    userContent,
		Status:     model.StatusSuccess,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	pending, err := model.ContentBlocks{
		model.NewBlock(model.BlockContent, "", model.StatusPending),
		model.NewBlock(model.BlockReasoning, "", model.StatusPending),
	}.Encode()
	if err != nil {
		return nil, err
	}
	assistant, err := s.store.AddMessage(ctx, model.StoredMessage{
		SessionID:  sessionID,
		Role:       model.RoleAssistant,
		ProviderID: p.ID,
		ModelID:    m.ID,
		Content:    pending,
		Status:     model.StatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	return &Turn{SessionID: sessionID, User: user, Assistant: assistant, Provider: p, Model: m}, nil
}

// Run generates the reply for turn and blocks until it is settled. The
// assistant message always ends in success or error: the reply text on
// success, the error text on failure and TerminatedByUser when stopped.
// onUpdate may be nil.
func (s *Service) Run(ctx context.Context, turn *Turn, onUpdate func(Update)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gen := &generation{messageID: turn.Assistant.ID, cancel: cancel, status: model.StatusPending}
	s.mu.Lock()
	if _, busy := s.active[gen.messageID]; busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.active[gen.messageID] = gen
	s.mu.Unlock()
	defer s.release(gen)

	notify := func(u Update) {
		if onUpdate != nil {
			onUpdate(u)
		}
	}

	completion, err := s.generate(ctx, turn, gen, notify)
	s.settle(ctx, gen, completion, err, notify)
	return err
}

// Send prepares and runs a turn.
func (s *Service) Send(ctx context.Context, sessionID int64, text string, p model.ProviderConfig, m model.ModelConfig, onUpdate func(Update)) (*Turn, error) {
	turn, err := s.Prepare(ctx, sessionID, text, p, m)
	if err != nil {
		return nil, err
	}
	return turn, s.Run(ctx, turn, onUpdate)
}

// Stop cancels the generation writing into messageID. It reports whether
// a generation was running; stopping twice is a no-op.
func (s *Service) Stop(messageID int64) bool {
	s.mu.Lock()
	gen, ok := s.active[messageID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	gen.cancel()
	return true
}

// Generating reports whether messageID has a generation in flight.
func (s *Service) Generating(messageID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[messageID]
	return ok
}

func (s *Service) release(gen *generation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[gen.messageID] == gen {
		delete(s.active, gen.messageID)
	}
}

func (s *Service) generate(ctx context.Context, turn *Turn, gen *generation, notify func(Update)) (*model.Completion, error) {
	session, err := s.store.GetSession(ctx, turn.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	settings := model.ParseSessionSettings(session.Metadata)

	stored, err := s.store.GetMessages(ctx, turn.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	history := stored[:0:0]
	for _, m := range stored {
		if m.ID != gen.messageID {
			history = append(history, m)
		}
	}
	messages := conversation.Assemble(history, settings.Window())
	if len(messages) == 0 {
		return nil, model.ErrNoMessages
	}

	tools, err := s.catalog.ListActiveTools(ctx)
	if err != nil {
		if model.IsCancelled(err) || ctx.Err() != nil {
			return nil, model.Cancelled(ctx.Err())
		}
		s.logger.Warn("failed to list tools, continuing without", "error", err)
		tools = nil
	}

	s.logger.Info("generating reply", "session", turn.SessionID, "message", gen.messageID,
		"provider", turn.Provider.ID, "model", turn.Model.ID, "history", len(messages), "tools", len(tools))

	temperature := settings.Temperature
	return s.orchestrator.Run(ctx, RunRequest{
		Messages:    messages,
		Provider:    turn.Provider,
		Model:       turn.Model,
		Temperature: &temperature,
		MaxTokens:   s.maxTokens,
		Tools:       tools,
		OnProgress: func(c model.Completion) {
			s.progress(ctx, gen, c, notify)
		},
	})
}

// progress writes a receiving snapshot of c.
func (s *Service) progress(ctx context.Context, gen *generation, c model.Completion, notify func(Update)) {
	if gen.settled || !gen.status.CanAdvanceTo(model.StatusReceiving) {
		return
	}
	first := gen.status != model.StatusReceiving
	gen.status = model.StatusReceiving

	blocks := model.AssistantBlocks(c.Content, c.ReasoningContent, c.ToolCallResults, model.StatusReceiving)
	if err := s.writeContent(ctx, gen.messageID, blocks); err != nil {
		s.logger.Warn("failed to write progress", "message", gen.messageID, "error", err)
	}
	if first {
		if err := s.store.UpdateMessageStatus(ctx, gen.messageID, model.StatusReceiving); err != nil {
			s.logger.Warn("failed to update message status", "message", gen.messageID, "error", err)
		}
	}
	notify(Update{MessageID: gen.messageID, Status: model.StatusReceiving, Completion: c})
}

// settle performs the single terminal write of gen.
func (s *Service) settle(ctx context.Context, gen *generation, completion *model.Completion, err error, notify func(Update)) {
	if gen.settled {
		return
	}
	gen.settled = true
	ctx = context.WithoutCancel(ctx)

	var (
		status = model.StatusSuccess
		blocks model.ContentBlocks
		final  model.Completion
	)
	switch {
	case err == nil:
		final = *completion
		blocks = model.AssistantBlocks(final.Content, final.ReasoningContent, final.ToolCallResults, model.StatusSuccess)
	case model.IsCancelled(err):
		status = model.StatusError
		blocks = model.AssistantBlocks(TerminatedByUser, "", nil, model.StatusError)
		s.logger.Info("generation stopped by user", "message", gen.messageID)
	default:
		status = model.StatusError
		blocks = model.AssistantBlocks(err.Error(), "", nil, model.StatusError)
		s.logger.Error("generation failed", "message", gen.messageID, "error", err)
	}
	gen.status = status

	if werr := s.writeContent(ctx, gen.messageID, blocks); werr != nil {
		s.logger.Error("failed to write final content", "message", gen.messageID, "error", werr)
	}
	if werr := s.store.UpdateMessageStatus(ctx, gen.messageID, status); werr != nil {
		s.logger.Error("failed to write final status", "message", gen.messageID, "error", werr)
	}
	if status == model.StatusError {
		final.Content = blocks.Text()
	}
	notify(Update{MessageID: gen.messageID, Status: status, Completion: final, Err: err})
}

func (s *Service) writeContent(ctx context.Context, id int64, blocks model.ContentBlocks) error {
	content, err := blocks.Encode()
	if err != nil {
		return err
	}
	return s.store.UpdateMessageContent(ctx, id, content)
}
