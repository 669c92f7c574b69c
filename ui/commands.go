package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tidwall/sjson"

	"seekchat/chat"
	"seekchat/config"
	"seekchat/model"
	"seekchat/provider"
)

const (
	listTimeout = 15 * time.Second
	pingTimeout = 10 * time.Second
)

// openLatestSession loads the most recent session, creating one on first run.
func openLatestSession(ctx context.Context, store SessionStore, defaults config.SessionDefaults) tea.Cmd {
	return func() tea.Msg {
		sessions, err := store.ListSessions(ctx)
		if err != nil {
			return errMsg{fmt.Errorf("failed to list sessions: %w", err)}
		}
		if len(sessions) == 0 {
			return createSession(ctx, store, "New Session", defaults)()
		}
		return loadSession(ctx, store, sessions[0].ID)()
	}
}

// loadSession reads a session and its messages.
func loadSession(ctx context.Context, store SessionStore, id int64) tea.Cmd {
	return func() tea.Msg {
		session, err := store.GetSession(ctx, id)
		if err != nil {
			return errMsg{fmt.Errorf("failed to load session %d: %w", id, err)}
		}
		messages, err := store.GetMessages(ctx, id)
		if err != nil {
			return errMsg{fmt.Errorf("failed to load messages: %w", err)}
		}
		return sessionLoadedMsg{Session: session, Messages: messages}
	}
}

// createSession stores a new session seeded with the configured defaults.
func createSession(ctx context.Context, store SessionStore, name string, defaults config.SessionDefaults) tea.Cmd {
	return func() tea.Msg {
		session, err := store.CreateSession(ctx, name)
		if err != nil {
			return errMsg{fmt.Errorf("failed to create session: %w", err)}
		}
		session.Metadata = defaults.Metadata()
		if err := store.UpdateSessionMetadata(ctx, session.ID, session.Metadata); err != nil {
			return errMsg{fmt.Errorf("failed to save session settings: %w", err)}
		}
		return sessionLoadedMsg{Session: session}
	}
}

func listSessions(ctx context.Context, store SessionStore) tea.Cmd {
	return func() tea.Msg {
		sessions, err := store.ListSessions(ctx)
		if err != nil {
			return errMsg{fmt.Errorf("failed to list sessions: %w", err)}
		}
		return sessionsListedMsg{Sessions: sessions}
	}
}

// saveSetting writes one key of the session metadata.
func saveSetting(ctx context.Context, store SessionStore, session model.Session, key string, value any, notice string) tea.Cmd {
	return func() tea.Msg {
		metadata := session.Metadata
		if metadata == "" {
			metadata = "{}"
		}
		updated, err := sjson.Set(metadata, key, value)
		if err != nil {
			return errMsg{fmt.Errorf("failed to update session settings: %w", err)}
		}
		if err := store.UpdateSessionMetadata(ctx, session.ID, updated); err != nil {
			return errMsg{fmt.Errorf("failed to save session settings: %w", err)}
		}
		return settingsSavedMsg{Metadata: updated, Notice: notice}
	}
}

// startTurn stores the user turn and runs its generation in the
// background. Updates arrive on the returned channel, which is closed when
// the assistant message is settled.
func startTurn(ctx context.Context, svc ChatService, sessionID int64, text string, p model.ProviderConfig, m model.ModelConfig) tea.Cmd {
	return func() tea.Msg {
		turn, err := svc.Prepare(ctx, sessionID, text, p, m)
		if err != nil {
			return errMsg{err}
		}

		updates := make(chan chat.Update, 16)
		go func() {
			defer close(updates)
			send := func(u chat.Update) {
				select {
				case updates <- u:
				case <-ctx.Done():
				}
			}
			if err := svc.Run(ctx, turn, send); errors.Is(err, chat.ErrBusy) {
				send(chat.Update{MessageID: turn.Assistant.ID, Status: model.StatusError, Err: err})
			}
		}()
		return turnStartedMsg{Turn: turn, Updates: updates}
	}
}

// waitForUpdate relays the next snapshot from a running generation.
func waitForUpdate(id int64, updates <-chan chat.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return generationDoneMsg{MessageID: id}
		}
		return chatUpdateMsg{Update: u, Updates: updates}
	}
}

// listModels asks each provider for its models.
func listModels(ctx context.Context, providers []model.ProviderConfig) tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(providers))
	for _, p := range providers {
		cmds = append(cmds, func() tea.Msg {
			ctx, cancel := context.WithTimeout(ctx, listTimeout)
			defer cancel()
			models, err := provider.ListModels(ctx, p)
			return modelsListedMsg{ProviderID: p.ID, Models: models, Err: err}
		})
	}
	return tea.Batch(cmds...)
}

func pingProvider(ctx context.Context, p model.ProviderConfig) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return pingResultMsg{ProviderID: p.ID, Err: provider.Ping(ctx, p)}
	}
}

func listTools(ctx context.Context, tools ToolLister) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, listTimeout)
		defer cancel()
		list, err := tools.ListActiveTools(ctx)
		return toolsListedMsg{Tools: list, Err: err}
	}
}

// persistDefaultModel remembers the selected model for the next launch.
func persistDefaultModel(cfg *config.Config, providerID, modelID string) tea.Cmd {
	return func() tea.Msg {
		if err := cfg.SetDefaultModel(providerID, modelID); err != nil {
			return noticeMsg{Text: fmt.Sprintf("Model selected but not saved: %v", err), Error: true}
		}
		return noticeMsg{Text: fmt.Sprintf("Using %s/%s", providerID, modelID)}
	}
}

func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		if text == "" {
			return noticeMsg{Text: "Nothing to copy"}
		}
		if err := clipboard.WriteAll(text); err != nil {
			return noticeMsg{Text: fmt.Sprintf("Copy failed: %v", err), Error: true}
		}
		return noticeMsg{Text: "Copied to clipboard"}
	}
}
