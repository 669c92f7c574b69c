package ui

import (
	"seekchat/chat"
	"seekchat/model"
)

// sessionLoadedMsg carries a session and its stored messages.
type sessionLoadedMsg struct {
	Session  model.Session
	Messages []model.StoredMessage
}

// sessionsListedMsg answers /sessions.
type sessionsListedMsg struct {
	Sessions []model.Session
}

// settingsSavedMsg reports new session metadata after /temp or /context.
type settingsSavedMsg struct {
	Metadata string
	Notice   string
}

// turnStartedMsg is sent once the user and pending assistant messages are
// stored and the generation is running.
type turnStartedMsg struct {
	Turn    *chat.Turn
	Updates <-chan chat.Update
}

// chatUpdateMsg is one snapshot of the assistant message being generated.
type chatUpdateMsg struct {
	Update  chat.Update
	Updates <-chan chat.Update
}

// generationDoneMsg is sent when the update channel closes.
type generationDoneMsg struct {
	MessageID int64
}

// modelsListedMsg carries the models a provider reported.
type modelsListedMsg struct {
	ProviderID string
	Models     []model.ModelInfo
	Err        error
}

// toolsListedMsg answers /tools.
type toolsListedMsg struct {
	Tools []model.ToolDescriptor
	Err   error
}

// pingResultMsg answers /ping.
type pingResultMsg struct {
	ProviderID string
	Err        error
}

// markdownRenderedMsg carries the terminal rendering of one message.
type markdownRenderedMsg struct {
	MessageID int64
	Source    string
	Width     int
	Rendered  string
}

// noticeMsg shows a one-line status.
type noticeMsg struct {
	Text  string
	Error bool
}

// errMsg reports a failed background command.
type errMsg struct {
	Err error
}
