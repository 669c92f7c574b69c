package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// BlockType names one typed segment of a message payload.
type BlockType string

const (
	BlockContent   BlockType = "content"
	BlockReasoning BlockType = "reasoning_content"
	BlockToolCalls BlockType = "tool_calls"
)

// Status is the lifecycle state of a message or one of its blocks.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReceiving Status = "receiving"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusReceiving:
		return 1
	case StatusSuccess, StatusError:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether s is success or error.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle
// moving forward. A receiving block may be rewritten as receiving again;
// terminal states are frozen.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.Terminal() || next.rank() < 0 {
		return false
	}
	if s == next {
		return s == StatusReceiving
	}
	return next.rank() > s.rank()
}

// ContentBlock is one typed part of a persisted message. Text is used by
// content and reasoning blocks, ToolCalls by the tool_calls block.
type ContentBlock struct {
	Type      BlockType
	Text      string
	ToolCalls []ToolCallResult
	Status    Status
	Timestamp int64
}

// NewBlock creates a text block stamped with the current time.
func NewBlock(t BlockType, text string, status Status) ContentBlock {
	return ContentBlock{Type: t, Text: text, Status: status, Timestamp: time.Now().UnixMilli()}
}

// NewToolCallsBlock creates a tool_calls block stamped with the current time.
func NewToolCallsBlock(results []ToolCallResult, status Status) ContentBlock {
	return ContentBlock{Type: BlockToolCalls, ToolCalls: results, Status: status, Timestamp: time.Now().UnixMilli()}
}

type wireBlock struct {
	Type      BlockType       `json:"type"`
	Content   json.RawMessage `json:"content"`
	Status    Status          `json:"status"`
	Timestamp int64           `json:"timestamp"`
}

func (b ContentBlock) MarshalJSON() ([]byte, error) {
	var (
		content []byte
		err     error
	)
	if b.Type == BlockToolCalls {
		results := b.ToolCalls
		if results == nil {
			results = []ToolCallResult{}
		}
		content, err = json.Marshal(results)
	} else {
		content, err = json.Marshal(b.Text)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireBlock{Type: b.Type, Content: content, Status: b.Status, Timestamp: b.Timestamp})
}

func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = ContentBlock{Type: w.Type, Status: w.Status, Timestamp: w.Timestamp}
	if len(w.Content) == 0 || string(w.Content) == "null" {
		return nil
	}
	switch w.Content[0] {
	case '"':
		return json.Unmarshal(w.Content, &b.Text)
	case '[':
		return json.Unmarshal(w.Content, &b.ToolCalls)
	default:
		// Numbers and objects are kept verbatim as text.
		b.Text = string(w.Content)
		return nil
	}
}

// ContentBlocks is the ordered payload of one message. It holds at most one
// block per type.
type ContentBlocks []ContentBlock

// Get returns the block of type t.
func (bs ContentBlocks) Get(t BlockType) (ContentBlock, bool) {
	for _, b := range bs {
		if b.Type == t {
			return b, true
		}
	}
	return ContentBlock{}, false
}

// Set replaces the block with the same type or appends it.
func (bs ContentBlocks) Set(b ContentBlock) ContentBlocks {
	for i := range bs {
		if bs[i].Type == b.Type {
			out := append(ContentBlocks(nil), bs...)
			out[i] = b
			return out
		}
	}
	return append(append(ContentBlocks(nil), bs...), b)
}

// Text returns the main content text. When no content block exists it
// falls back to the first successful block.
func (bs ContentBlocks) Text() string {
	if b, ok := bs.Get(BlockContent); ok {
		return b.Text
	}
	for _, b := range bs {
		if b.Status == StatusSuccess {
			return b.Text
		}
	}
	return ""
}

// Encode serializes the blocks into the stored content string.
func (bs ContentBlocks) Encode() (string, error) {
	if bs == nil {
		bs = ContentBlocks{}
	}
	data, err := json.Marshal(bs)
	if err != nil {
		return "", fmt.Errorf("encode content blocks: %w", err)
	}
	return string(data), nil
}

// ParseContentBlocks decodes stored message content. Anything that is not a
// JSON array of blocks is treated as plain text wrapped in a single
// successful content block.
func ParseContentBlocks(raw string) ContentBlocks {
	var bs ContentBlocks
	if err := json.Unmarshal([]byte(raw), &bs); err == nil && bs != nil {
		return bs
	}
	return ContentBlocks{NewBlock(BlockContent, raw, StatusSuccess)}
}

// AssistantBlocks builds the payload of an assistant message: the content
// block, a reasoning block only when reasoning text exists, and a
// tool_calls block only when tools ran. All blocks share status.
func AssistantBlocks(content, reasoning string, results []ToolCallResult, status Status) ContentBlocks {
	bs := ContentBlocks{NewBlock(BlockContent, content, status)}
	if reasoning != "" {
		bs = append(bs, NewBlock(BlockReasoning, reasoning, status))
	}
	if len(results) > 0 {
		bs = append(bs, NewToolCallsBlock(results, status))
	}
	return bs
}
