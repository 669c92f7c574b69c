package model

import "time"

// Conversation roles understood by every provider adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one conversation turn as handed to a provider adapter.
//
// Assistant messages produced by a tool round carry the raw ToolCalls the
// model requested; tool messages carry the ToolCallID they answer.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a tool invocation requested by a model. While a stream is in
// flight it doubles as the per-index fragment accumulator; Arguments only
// ever grows by concatenation.
type ToolCall struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction holds the requested function name and its raw,
// possibly malformed, JSON argument string.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// StoredMessage is a message row as kept by the session store. Content is
// always a JSON-encoded ContentBlocks array.
type StoredMessage struct {
	ID         int64
	SessionID  int64
	Role       string
	ProviderID string
	ModelID    string
	Content    string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Blocks decodes the message content into its typed blocks.
func (m StoredMessage) Blocks() ContentBlocks {
	return ParseContentBlocks(m.Content)
}

// Session is a chat session row. Metadata is an opaque JSON object that
// carries per-session settings.
type Session struct {
	ID        int64
	Name      string
	Metadata  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
